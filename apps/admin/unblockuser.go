package main

import (
	"context"
	"fmt"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
)

// unblockUser lifts a compliance block: it clears the blocked_* metadata and
// reactivates the account. Running it on an unblocked user is harmless.
func (cli *commandLine) unblockUser(uname string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, uname}})
	if err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UnblockUser(ctx, usr.ID); err != nil {
		return err
	}
	fmt.Printf("user %q unblocked\n", usr.Username)
	return nil
}
