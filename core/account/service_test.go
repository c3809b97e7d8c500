package account

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
)

// fakeRepo is a minimal in-memory Repository with fault injection hooks.
type fakeRepo struct {
	mu                sync.Mutex
	accounts          map[string]*Account
	firstAdminClaimed bool

	getByIDErr    error // forced error on GetAccountByID
	approveErr    error // forced error on ApproveAccountByEmail
	claimErr      error
	approvedCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[string]*Account)}
}

func (r *fakeRepo) CheckEmailUniqueness(_ context.Context, email string, excluded ...Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if !strings.EqualFold(a.Email, email) {
			continue
		}
		var excl bool
		for _, e := range excluded {
			if e.ID == a.ID {
				excl = true
				break
			}
		}
		if !excl {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *fakeRepo) CreateAccount(_ context.Context, acct Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acct.ID] = &acct
	return acct, nil
}

func (r *fakeRepo) QueryAllAccounts(_ context.Context) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accts := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		accts = append(accts, *a)
	}
	return accts, nil
}

func (r *fakeRepo) GetAccountByID(_ context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getByIDErr != nil {
		return Account{}, r.getByIDErr
	}
	if a, ok := r.accounts[id]; ok {
		return *a, nil
	}
	return Account{}, ErrNotFound
}

func (r *fakeRepo) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			return *a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *fakeRepo) FilterAccounts(_ context.Context, _ QueryFilter, _ ...core.DBOrdering) ([]Account, error) {
	return r.QueryAllAccounts(context.Background())
}

func (r *fakeRepo) UpdateAccount(_ context.Context, acct Account, approved, verified *bool) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orig, ok := r.accounts[acct.ID]
	if !ok {
		return Account{}, ErrNotFound
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
	}
	return *orig, nil
}

func (r *fakeRepo) DeleteAccountsByID(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.accounts, id)
	}
	return nil
}

func (r *fakeRepo) AdminExists(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ClaimFirstAdmin(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	if r.firstAdminClaimed {
		return false, nil
	}
	r.firstAdminClaimed = true
	return true, nil
}

func (r *fakeRepo) ApproveAccountByEmail(_ context.Context, email string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvedCalls++
	if r.approveErr != nil {
		return Account{}, r.approveErr
	}
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			a.RegistrationApproved = true
			return *a, nil
		}
	}
	return Account{}, ErrNotFound
}

// mailMock captures outgoing messages synchronously.
type mailMock struct {
	mu       sync.Mutex
	messages []core.EmailMessage
}

var _ core.EmailService = (*mailMock)(nil)

func (m *mailMock) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.messages = append(m.messages, *msg)
	}
}

func (m *mailMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Enable(bool)                        {}
func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func newTestService(repo Repository) (Service, *mailMock) {
	mailSvc := &mailMock{}
	svc := NewServiceMock(repo, mailSvc, nopLogger{})
	return svc, mailSvc
}

func seedAccount(t *testing.T, repo Repository, name, email, role, password string, approved, verified bool) Account {
	t.Helper()
	now := time.Now().UTC()
	acct := Account{
		ID:                   uuid.NewString(),
		Name:                 name,
		Email:                email,
		Role:                 role,
		RegistrationApproved: approved,
		EmailVerified:        verified,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := acct.SetPassword(password); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	created, err := repo.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return created
}

func TestServiceRegister_approvalRules(t *testing.T) {
	ctx := context.Background()
	designated := core.Conf.Bootstrap.AdminEmail

	tests := []struct {
		name         string
		na           NewAccount
		wantOutcome  RegistrationOutcome
		wantApproved bool
		wantRole     string
	}{
		{
			name:         "student is auto-approved",
			na:           NewAccount{Name: "Student", Email: "stud@test.test", Password: "Val1d.Pwd!", Role: RoleStudent},
			wantOutcome:  OutcomeRegistered,
			wantApproved: true,
			wantRole:     RoleStudent,
		},
		{
			name:         "lecturer is pending",
			na:           NewAccount{Name: "Lect", Email: "lect@test.test", Password: "Val1d.Pwd!", Role: RoleLecturer},
			wantOutcome:  OutcomePendingApproval,
			wantApproved: false,
			wantRole:     RoleLecturer,
		},
		{
			name:         "employer is pending",
			na:           NewAccount{Name: "Empl", Email: "empl@test.test", Password: "Val1d.Pwd!", Role: RoleEmployer},
			wantOutcome:  OutcomePendingApproval,
			wantApproved: false,
			wantRole:     RoleEmployer,
		},
		{
			name:         "designated admin is forced to admin role and approved",
			na:           NewAccount{Name: "Boss", Email: designated, Password: "Val1d.Pwd!", Role: RoleStudent},
			wantOutcome:  OutcomeRegistered,
			wantApproved: true,
			wantRole:     RoleAdmin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(newFakeRepo())
			res, err := svc.Register(ctx, tt.na)
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v", res.Outcome, tt.wantOutcome)
			}
			if got := svc.Approved(res.Account); got != tt.wantApproved {
				t.Errorf("Approved() = %v, want %v", got, tt.wantApproved)
			}
			if res.Account.Role != tt.wantRole {
				t.Errorf("Role = %v, want %v", res.Account.Role, tt.wantRole)
			}
		})
	}
}

func TestServiceRegister_firstAdmin(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	// the very first admin auto-approves through the one-time claim
	res, err := svc.Register(ctx, NewAccount{Name: "First", Email: "first@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.FirstAdmin || !res.AutoApproved {
		t.Errorf("FirstAdmin = %v, AutoApproved = %v, want both true", res.FirstAdmin, res.AutoApproved)
	}
	if !res.Account.RegistrationApproved {
		t.Error("first admin should be stored approved")
	}

	// a second admin stays pending: the claim can only be won once
	res2, err := svc.Register(ctx, NewAccount{Name: "Second", Email: "second@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res2.FirstAdmin || res2.Outcome != OutcomePendingApproval {
		t.Errorf("second admin: FirstAdmin = %v, Outcome = %v, want false/pending", res2.FirstAdmin, res2.Outcome)
	}
}

func TestServiceRegister_firstAdminSpentByOtherPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("designated admin registration spends the slot", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		if _, err := svc.Register(ctx, NewAccount{Name: "Boss", Email: core.Conf.Bootstrap.AdminEmail, Password: "Val1d.Pwd!", Role: RoleLecturer}); err != nil {
			t.Fatalf("Register(designated) error = %v", err)
		}

		res, err := svc.Register(ctx, NewAccount{Name: "Late", Email: "late@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if res.FirstAdmin || res.AutoApproved || res.Outcome != OutcomePendingApproval {
			t.Errorf("admin after designated admin: FirstAdmin = %v, AutoApproved = %v, Outcome = %v, want false/false/pending",
				res.FirstAdmin, res.AutoApproved, res.Outcome)
		}
	})

	t.Run("pre-existing admin blocks the claim", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		// the admin record exists but the slot was never claimed, e.g. a
		// migrated data set
		seedAccount(t, repo, "Old", "old@test.test", RoleAdmin, "Val1d.Pwd!", true, true)

		res, err := svc.Register(ctx, NewAccount{Name: "Late", Email: "late@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if res.FirstAdmin || res.Outcome != OutcomePendingApproval {
			t.Errorf("FirstAdmin = %v, Outcome = %v, want false/pending", res.FirstAdmin, res.Outcome)
		}
	})

	t.Run("approving an admin spends the slot", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		pending := seedAccount(t, repo, "Pending", "pending@test.test", RoleAdmin, "Val1d.Pwd!", false, true)

		if _, err := svc.Approve(ctx, pending.ID); err != nil {
			t.Fatalf("Approve() error = %v", err)
		}

		claimed, err := repo.ClaimFirstAdmin(ctx)
		if err != nil {
			t.Fatalf("ClaimFirstAdmin() error = %v", err)
		}
		if claimed {
			t.Error("the first-admin slot must be spent once an admin is approved")
		}
	})

	t.Run("admin-created admin spends the slot", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		if _, err := svc.Create(ctx, NewAccount{Name: "Ops", Email: "ops@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		claimed, err := repo.ClaimFirstAdmin(ctx)
		if err != nil {
			t.Fatalf("ClaimFirstAdmin() error = %v", err)
		}
		if claimed {
			t.Error("the first-admin slot must be spent once an admin is created")
		}
	})
}

func TestServiceRegister_firstAdminApprovalFallback(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.approveErr = errors.New("privileged path down")
	svc, _ := newTestService(repo)

	// when the privileged approval path fails, the direct update fallback
	// still approves the first admin
	res, err := svc.Register(ctx, NewAccount{Name: "First", Email: "first@test.test", Password: "Val1d.Pwd!", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.Account.RegistrationApproved {
		t.Error("fallback should have approved the first admin")
	}
	if repo.approvedCalls != 1 {
		t.Errorf("ApproveAccountByEmail calls = %d, want 1", repo.approvedCalls)
	}
}

func TestServiceRegister_duplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedAccount(t, repo, "Dup", "dup@test.test", RoleStudent, "Val1d.Pwd!", true, true)

	_, err := svc.Register(ctx, NewAccount{Name: "Dup2", Email: "dup@test.test", Password: "Val1d.Pwd!", Role: RoleStudent})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Register() error = %v, want ValidationError", err)
	}

	// the designated admin registering twice is informational, not an error
	seedAccount(t, repo, "Boss", core.Conf.Bootstrap.AdminEmail, RoleAdmin, "Val1d.Pwd!", true, true)
	res, err := svc.Register(ctx, NewAccount{Name: "Boss", Email: core.Conf.Bootstrap.AdminEmail, Password: "Val1d.Pwd!", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.Outcome != OutcomeAdminAlreadyRegistered {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeAdminAlreadyRegistered)
	}
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	seedAccount(t, repo, "Stud", "stud@test.test", RoleStudent, "Val1d.Pwd!", true, true)
	seedAccount(t, repo, "Unverified", "unverified@test.test", RoleLecturer, "Val1d.Pwd!", true, false)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "ok", email: "stud@test.test", password: "Val1d.Pwd!"},
		{name: "email is case-insensitive", email: "STUD@test.test", password: "Val1d.Pwd!"},
		{name: "unknown email", email: "nope@test.test", password: "Val1d.Pwd!", wantErr: ErrInvalidCredentials},
		{name: "wrong password", email: "stud@test.test", password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "unverified email", email: "unverified@test.test", password: "Val1d.Pwd!", wantErr: ErrEmailNotVerified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, tt.email, tt.password)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && res.Account.LastLogin.IsZero() {
				t.Error("LastLogin should be set on success")
			}
			if res.OfferAdminRecovery {
				t.Error("OfferAdminRecovery should not be set for regular accounts")
			}
		})
	}
}

func TestServiceLogin_designatedAdmin(t *testing.T) {
	ctx := context.Background()
	designated := core.Conf.Bootstrap.AdminEmail

	t.Run("failed credentials flag the recovery affordance", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		seedAccount(t, repo, "Boss", designated, RoleAdmin, "Val1d.Pwd!", true, true)

		res, err := svc.Login(ctx, designated, "wrong")
		if errors.Cause(err) != ErrInvalidCredentials {
			t.Fatalf("Login() error = %v, want %v", err, ErrInvalidCredentials)
		}
		if !res.OfferAdminRecovery {
			t.Error("OfferAdminRecovery should be set for the designated admin")
		}
	})

	t.Run("login re-asserts role and flags", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		// stored record drifted: wrong role, unapproved, unverified
		seedAccount(t, repo, "Boss", designated, RoleStudent, "Val1d.Pwd!", false, false)

		res, err := svc.Login(ctx, designated, "Val1d.Pwd!")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if res.Account.Role != RoleAdmin {
			t.Errorf("Role = %v, want %v", res.Account.Role, RoleAdmin)
		}
		if !res.Account.RegistrationApproved || !res.Account.EmailVerified {
			t.Error("designated admin should be stored approved and verified after login")
		}
	})

	t.Run("missing account offers recovery", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		res, err := svc.Login(ctx, designated, "whatever")
		if errors.Cause(err) != ErrInvalidCredentials {
			t.Fatalf("Login() error = %v, want %v", err, ErrInvalidCredentials)
		}
		if !res.OfferAdminRecovery {
			t.Error("OfferAdminRecovery should be set when the designated admin is missing")
		}
	})
}

func TestServicePasswordReset(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, mailSvc := newTestService(repo)
	acct := seedAccount(t, repo, "Stud", "stud@test.test", RoleStudent, "Val1d.Pwd!", true, true)

	if err := svc.RequestPasswordReset(ctx, acct.Email); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if mailSvc.count() != 1 {
		t.Fatalf("sent mails = %d, want 1", mailSvc.count())
	}
	msg := mailSvc.messages[0]
	link, ok := msg.TemplateData.(struct{ Name, URL string })
	if !ok {
		t.Fatalf("unexpected template data %T", msg.TemplateData)
	}
	if !strings.Contains(link.URL, "type=recovery") || !strings.Contains(link.URL, "email=") {
		t.Errorf("recovery URL %q missing expected params", link.URL)
	}

	token := makeToken(acct, purposePasswordReset)
	updated, err := svc.ResetPassword(ctx, ResetAccountPassword{
		Token:           token,
		UID:             EncodeUID(acct),
		Password:        "N3w.Val1d.Pwd!",
		PasswordConfirm: "N3w.Val1d.Pwd!",
	})
	if err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := updated.CheckPassword("N3w.Val1d.Pwd!"); err != nil {
		t.Errorf("CheckPassword() after reset error = %v", err)
	}

	// token is single-use: the password change invalidated it
	_, err = svc.ResetPassword(ctx, ResetAccountPassword{
		Token:           token,
		UID:             EncodeUID(acct),
		Password:        "An0ther.Pwd!",
		PasswordConfirm: "An0ther.Pwd!",
	})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("ResetPassword() reuse error = %v, want ValidationError", err)
	}
}

func TestServiceVerifyEmail(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	acct := seedAccount(t, repo, "Lect", "lect@test.test", RoleLecturer, "Val1d.Pwd!", false, false)

	token := makeToken(acct, purposeEmailVerification)
	updated, err := svc.VerifyEmail(ctx, VerifyAccountEmail{Token: token, UID: EncodeUID(acct)})
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if !updated.EmailVerified {
		t.Error("EmailVerified should be set")
	}
	// approval is a separate gate: verification alone does not approve
	if updated.RegistrationApproved {
		t.Error("verification must not approve the account")
	}
}

func TestServiceApprove(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, mailSvc := newTestService(repo)
	acct := seedAccount(t, repo, "Lect", "lect@test.test", RoleLecturer, "Val1d.Pwd!", false, true)

	updated, err := svc.Approve(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !updated.RegistrationApproved {
		t.Error("RegistrationApproved should be set")
	}
	if mailSvc.count() != 1 {
		t.Errorf("sent mails = %d, want 1", mailSvc.count())
	}

	// approving twice is a no-op, no second mail
	if _, err := svc.Approve(ctx, acct.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if mailSvc.count() != 1 {
		t.Errorf("sent mails = %d, want 1", mailSvc.count())
	}
}
