package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		accts = append(accts, *a)
	}
	return accts
}

func (repo *accountRepository) CheckEmailUniqueness(_ context.Context, email string, excluded ...account.Account) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclLen := len(excluded)
	if exclLen > 1 {
		sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })
	}

	for _, acct := range repo.query() {
		if strings.EqualFold(acct.Email, email) && !isExcluded(acct, excluded, exclLen) {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) QueryAllAccounts(_ context.Context) ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		return *acct, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if strings.EqualFold(acct.Email, email) {
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) FilterAccounts(_ context.Context, filter account.QueryFilter, _ ...core.DBOrdering) ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accts := repo.query()

	// accounts with search keyword matching Name or Email ?
	if filter.Search != "" {
		var filtered []account.Account
		for _, a := range accts {
			if strings.Contains(strings.ToLower(a.Name), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(a.Email), strings.ToLower(filter.Search)) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	// accounts with any of the specified roles
	if accts != nil && len(filter.Roles) > 0 {
		var filtered []account.Account
		for _, a := range accts {
			for _, r := range filter.Roles {
				if a.Role == r {
					filtered = append(filtered, a)
					break
				}
			}
		}
		accts = filtered
	}
	if accts != nil && filter.Approved != nil {
		var filtered []account.Account
		for _, a := range accts {
			if a.RegistrationApproved == *filter.Approved {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && filter.Department != "" {
		var filtered []account.Account
		for _, a := range accts {
			if strings.EqualFold(a.Department.String, filter.Department) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedFrom.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedFrom.UTC()
		for _, a := range accts {
			if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedTo.IsZero() {
		var filtered []account.Account
		timeUTC := filter.CreatedTo.UTC()
		for _, a := range accts {
			if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}

	return accts, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acct account.Account, approved, verified *bool) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if acct.Name != "" {
		orig.Name = acct.Name
	}
	if acct.Email != "" {
		orig.Email = acct.Email
	}
	if acct.Role != "" {
		orig.Role = acct.Role
	}
	if acct.PasswordHash != nil {
		orig.PasswordHash = acct.PasswordHash
	}
	if acct.Department.Valid {
		orig.Department = acct.Department
	}
	if acct.Course.Valid {
		orig.Course = acct.Course
	}
	if acct.GroupName.Valid {
		orig.GroupName = acct.GroupName
	}
	if acct.Organization.Valid {
		orig.Organization = acct.Organization
	}
	if approved != nil {
		orig.RegistrationApproved = *approved
	}
	if verified != nil {
		orig.EmailVerified = *verified
	}
	if !acct.LastLogin.IsZero() {
		orig.LastLogin = acct.LastLogin
	}
	orig.UpdatedAt = acct.UpdatedAt

	repo.db.table[acct.ID] = orig
	return *orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *accountRepository) AdminExists(_ context.Context) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Role == account.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (repo *accountRepository) ClaimFirstAdmin(_ context.Context) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.firstAdminClaimed {
		return false, nil
	}
	repo.db.firstAdminClaimed = true
	return true, nil
}

func (repo *accountRepository) ApproveAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, acct := range repo.db.table {
		if strings.EqualFold(acct.Email, email) {
			acct.RegistrationApproved = true
			repo.db.table[id] = acct
			return *acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func isExcluded(acct account.Account, excluded []account.Account, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excluded[i].ID >= acct.ID })
	return idx < n && excluded[idx].ID == acct.ID
}
