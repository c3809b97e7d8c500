package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
)

// addAccount updates or creates an account. Accounts added from the CLI are
// operator-vetted: they come out approved and verified.
func (cli *commandLine) addAccount(name, email, pwd, role string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	acct, err := cli.acctRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != account.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		acct = account.Account{
			ID:                   uuid.NewString(),
			Name:                 name,
			Email:                email,
			Role:                 role,
			RegistrationApproved: true,
			EmailVerified:        true,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err = acct.SetPassword(pwd); err != nil {
			return err
		}
		if _, err = cli.acctRepo.CreateAccount(ctx, acct); err != nil {
			return err
		}
		return cli.spendFirstAdmin(ctx, role)
	}

	acct.Name = name
	acct.Role = role
	acct.UpdatedAt = time.Now().UTC()
	if err = acct.SetPassword(pwd); err != nil {
		return err
	}
	approved, verified := true, true
	if _, err = cli.acctRepo.UpdateAccount(ctx, acct, &approved, &verified); err != nil {
		return err
	}
	return cli.spendFirstAdmin(ctx, role)
}

// spendFirstAdmin burns the one-time bootstrap slot when an admin account
// comes into existence through the CLI.
func (cli *commandLine) spendFirstAdmin(ctx context.Context, role string) error {
	if role != account.RoleAdmin {
		return nil
	}
	_, err := cli.acctRepo.ClaimFirstAdmin(ctx)
	return errors.Wrap(err, "spending first-admin slot")
}
