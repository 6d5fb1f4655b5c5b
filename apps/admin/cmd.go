package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/storage/database"
)

var (
	readPasswordFunc  = term.ReadPassword       // mockable
	runMigrationsFunc = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type passwordSetter interface {
	SetPassword(ctx context.Context, role account.Role, email, pwd string) error
}

type commandLine struct {
	db       *sql.DB
	accounts passwordSetter
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                           - run a goose command against the embedded migrations")
	fmt.Println("  resetpassword -email EMAIL [-role student|parent] - set a student's or parent's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")
	resetPasswordRole := resetPasswordCmd.String("role", string(account.RoleParent), "The account's role: student or parent.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		role := account.Role(*resetPasswordRole)
		if *resetPasswordEmail == "" || !role.Valid() {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(role, *resetPasswordEmail, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}
