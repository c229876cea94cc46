package main

import (
	"context"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, uname}})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, user.User{ID: usr.ID, PasswordHash: usr.PasswordHash}, nil); err != nil {
		return err
	}
	return nil
}
