package main

import (
	"context"
	"time"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(tenant, uname, email, pwd string, isAdmin bool) error {
	var usr user.User
	var err error
	ctx := context.Background()
	tenant = core.CleanString(tenant, true /* lower */)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			TenantID:  tenant,
			Username:  uname,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
