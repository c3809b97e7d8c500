package main

import (
	"context"
	"fmt"
)

// resetAdmin restores the designated admin account so an operator can get
// back in with the fallback password.
func (cli *commandLine) resetAdmin() error {
	acct, err := cli.acctSvc.ResetAdminAccount(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Admin account %q restored. Log in with the fallback password and change it.\n", acct.Email)
	return nil
}
