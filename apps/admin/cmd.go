package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/compliance"
	"github.com/caremint/backend/core/user"
	"github.com/caremint/backend/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf      *core.Config
	db        *sqlx.DB
	usrRepo   user.Repository
	evaluator *compliance.Evaluator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb                                           - create the app DB and user if they do not exist")
	fmt.Println("  migrate COMMAND [args...]                          - run DB migrations (up, down, status, ...)")
	fmt.Println("  adduser -tenant TENANT -username UNAME -email EMAIL [-admin] - update or create a user; password prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL             - reset user's password")
	fmt.Println("  unblockuser -username USERNAME|EMAIL               - lift a compliance block and reactivate the account")
	fmt.Println("  runcompliance                                      - evaluate expired milestones and block failing agents")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserTenant := addUserCmd.String("tenant", "", "The user's tenant.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	unblockUserCmd := flag.NewFlagSet("unblockuser", flag.ExitOnError)
	unblockUserUname := unblockUserCmd.String("username", "", "The user's username or email.")

	switch args[1] {
	case "createdb":
		return database.CreateIfNotExist(cli.conf)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserTenant == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserTenant, *addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "unblockuser":
		if err := unblockUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unblockUserUname == "" {
			unblockUserCmd.Usage()
			return errHelp
		}
		return cli.unblockUser(*unblockUserUname)
	case "runcompliance":
		return cli.runCompliance()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
