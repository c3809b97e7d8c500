package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) account.Repository {
	return &accountRepository{db: db}
}

const accountColumns = `id, name, email, role, registration_approved, email_verified,
	department, course, group_name, organization, password_hash, created_at, updated_at, last_login`

func (repo *accountRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...account.Account) error {
	exclIDs := make([]string, 0, len(excluded))
	for _, e := range excluded {
		exclIDs = append(exclIDs, e.ID)
	}

	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM account WHERE LOWER(email) = LOWER($1) AND id != ALL($2))`,
		email, pq.Array(exclIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return account.ErrEmailExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO account (`+accountColumns+`)
		 VALUES (:id, :name, :email, :role, :registration_approved, :email_verified,
			:department, :course, :group_name, :organization, :password_hash, :created_at, :updated_at, :last_login)`,
		acct,
	)
	return acct, errors.Wrap(err, "inserting account")
}

func (repo *accountRepository) QueryAllAccounts(ctx context.Context) ([]account.Account, error) {
	accts := make([]account.Account, 0)
	err := repo.db.SelectContext(ctx, &accts,
		`SELECT `+accountColumns+` FROM account ORDER BY created_at`)
	return accts, errors.Wrap(err, "querying accounts")
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (account.Account, error) {
	var acct account.Account
	err := repo.db.GetContext(ctx, &acct,
		`SELECT `+accountColumns+` FROM account WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return account.Account{}, account.ErrNotFound
	}
	return acct, errors.Wrap(err, "getting account by ID")
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var acct account.Account
	err := repo.db.GetContext(ctx, &acct,
		`SELECT `+accountColumns+` FROM account WHERE LOWER(email) = LOWER($1)`, email)
	if err == sql.ErrNoRows {
		return account.Account{}, account.ErrNotFound
	}
	return acct, errors.Wrap(err, "getting account by email")
}

func (repo *accountRepository) FilterAccounts(ctx context.Context, filter account.QueryFilter, orderings ...core.DBOrdering) ([]account.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM account WHERE 1=1`
	args := make([]interface{}, 0, 6)

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		q += ` AND (name ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if len(filter.Roles) > 0 {
		q += ` AND role = ANY(` + arg(pq.Array(filter.Roles)) + `)`
	}
	if filter.Approved != nil {
		q += ` AND registration_approved = ` + arg(*filter.Approved)
	}
	if filter.Department != "" {
		q += ` AND LOWER(department) = LOWER(` + arg(filter.Department) + `)`
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}

	if len(orderings) > 0 {
		q += ` ORDER BY`
		for i, ord := range orderings {
			if i > 0 {
				q += `,`
			}
			q += ` ` + ord.String()
		}
	} else {
		q += ` ORDER BY created_at`
	}

	accts := make([]account.Account, 0)
	err := repo.db.SelectContext(ctx, &accts, q, args...)
	return accts, errors.Wrap(err, "filtering accounts")
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct account.Account, approved, verified *bool) (account.Account, error) {
	orig, err := repo.GetAccountByID(ctx, acct.ID)
	if err != nil {
		return account.Account{}, err
	}

	// only save set fields
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
	if !acct.UpdatedAt.IsZero() {
		orig.UpdatedAt = acct.UpdatedAt
	} else {
		orig.UpdatedAt = time.Now().UTC()
	}

	_, err = repo.db.NamedExecContext(ctx,
		`UPDATE account
		 SET name = :name, email = :email, role = :role,
			registration_approved = :registration_approved, email_verified = :email_verified,
			department = :department, course = :course, group_name = :group_name,
			organization = :organization, password_hash = :password_hash,
			updated_at = :updated_at, last_login = :last_login
		 WHERE id = :id`,
		orig,
	)
	return orig, errors.Wrap(err, "updating account")
}

func (repo *accountRepository) DeleteAccountsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM account WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting accounts")
}

func (repo *accountRepository) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM account WHERE role = $1)`, account.RoleAdmin)
	return exists, errors.Wrap(err, "checking admin existence")
}

// ClaimFirstAdmin wins at most once: the single-row insert conflicts for every
// caller after the first.
func (repo *accountRepository) ClaimFirstAdmin(ctx context.Context) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO admin_bootstrap (claim) VALUES (1) ON CONFLICT DO NOTHING`)
	if err != nil {
		return false, errors.Wrap(err, "claiming first admin")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "claiming first admin")
	}
	return n == 1, nil
}

func (repo *accountRepository) ApproveAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var acct account.Account
	err := repo.db.GetContext(ctx, &acct,
		`UPDATE account SET registration_approved = TRUE, updated_at = NOW()
		 WHERE LOWER(email) = LOWER($1)
		 RETURNING `+accountColumns,
		email,
	)
	if err == sql.ErrNoRows {
		return account.Account{}, account.ErrNotFound
	}
	return acct, errors.Wrap(err, "approving account")
}
