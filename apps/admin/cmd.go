package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/globalitacademy/yscip/core/account"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	acctRepo account.Repository
	acctSvc  account.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run DB migrations (up, down, status, ...)")
	fmt.Println("  addaccount -email EMAIL -name NAME [-role ROLE] - create or update an account")
	fmt.Println("  resetpassword -email EMAIL - reset an account's password")
	fmt.Println("  resetadmin - restore the designated admin account with the fallback password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ExitOnError)
	addAccountEmail := addAccountCmd.String("email", "", "The account's email. The password will be prompted next.")
	addAccountName := addAccountCmd.String("name", "", "The account holder's full name.")
	addAccountRole := addAccountCmd.String("role", account.RoleAdmin, "The account's role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAccountEmail == "" || *addAccountName == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		if !account.ValidRole(*addAccountRole) {
			addAccountCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		return cli.addAccount(*addAccountName, *addAccountEmail, pwd, *addAccountRole)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "resetadmin":
		return cli.resetAdmin()
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
