package user

import (
	"context"

	"github.com/caremint/backend/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service without transaction support; emails are
// sent synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	InitTokenGen(conf)
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	return svc.sendPasswordResetMail(usr)
}
