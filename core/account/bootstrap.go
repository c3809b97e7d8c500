package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// The designated admin is a configured break-glass identity: its account is
// always an approved, verified admin no matter what the stored record says.

func (svc *service) IsDesignatedAdmin(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), svc.boot.AdminEmail)
}

// Approved reports whether acct may pass the approval gate. Students and the
// designated admin are approved regardless of the stored flag.
func (svc *service) Approved(acct Account) bool {
	return acct.IsApproved() || svc.IsDesignatedAdmin(acct.Email)
}

// EnsureAdminAccount re-asserts the designated admin invariant on the stored
// record: role admin, approved and verified. It returns ErrNotFound when no
// record exists; creation is the job of registration or ResetAdminAccount.
func (svc *service) EnsureAdminAccount(ctx context.Context) (Account, error) {
	acct, err := svc.repo.GetAccountByEmail(ctx, svc.boot.AdminEmail)
	if err != nil {
		return Account{}, err
	}
	svc.spendFirstAdmin(ctx)
	if acct.Role == RoleAdmin && acct.RegistrationApproved && acct.EmailVerified {
		return acct, nil
	}
	acct.Role = RoleAdmin
	acct.UpdatedAt = time.Now().UTC()
	flag := true
	acct, err = svc.repo.UpdateAccount(ctx, acct, &flag, &flag)
	return acct, errors.Wrap(err, "re-asserting admin account")
}

// ResetAdminAccount is the operator recovery path: it rewrites the designated
// admin record with the configured fallback password, creating the account
// when it is missing.
func (svc *service) ResetAdminAccount(ctx context.Context) (Account, error) {
	now := time.Now().UTC()

	acct, err := svc.repo.GetAccountByEmail(ctx, svc.boot.AdminEmail)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Account{}, errors.Wrap(err, "finding admin account")
		}
		acct = Account{
			ID:                   uuid.NewString(),
			Name:                 "Administrator",
			Email:                svc.boot.AdminEmail,
			Role:                 RoleAdmin,
			RegistrationApproved: true,
			EmailVerified:        true,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := acct.SetPassword(svc.boot.AdminFallbackPassword); err != nil {
			return Account{}, errors.Wrap(err, "setting fallback password")
		}
		acct, err = svc.repo.CreateAccount(ctx, acct)
		if err != nil {
			return Account{}, errors.Wrap(err, "creating admin account")
		}
		svc.spendFirstAdmin(ctx)
		return acct, nil
	}

	acct.Role = RoleAdmin
	acct.UpdatedAt = now
	if err := acct.SetPassword(svc.boot.AdminFallbackPassword); err != nil {
		return Account{}, errors.Wrap(err, "setting fallback password")
	}
	flag := true
	acct, err = svc.repo.UpdateAccount(ctx, acct, &flag, &flag)
	if err != nil {
		return Account{}, errors.Wrap(err, "resetting admin account")
	}
	svc.spendFirstAdmin(ctx)
	return acct, nil
}
