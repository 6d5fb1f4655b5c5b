package main

import (
	"context"

	"github.com/trezcool/jifunze/core/account"
)

func (cli *commandLine) resetPassword(role account.Role, email, pwd string) error {
	return cli.accounts.SetPassword(context.Background(), role, email, pwd)
}
