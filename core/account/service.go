package account

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address has not been confirmed")
)

// RegistrationOutcome describes how a registration request ended.
type RegistrationOutcome string

const (
	// OutcomeRegistered - account created and auto-approved.
	OutcomeRegistered RegistrationOutcome = "registered"
	// OutcomePendingApproval - account created; an administrator must approve it
	// after the email address is confirmed.
	OutcomePendingApproval RegistrationOutcome = "pending_approval"
	// OutcomeAdminAlreadyRegistered - the designated admin tried to register again.
	// Informational, not an error: the caller should suggest login or recovery.
	OutcomeAdminAlreadyRegistered RegistrationOutcome = "admin_already_registered"
)

type (
	RegistrationResult struct {
		Account      Account             `json:"account"`
		Outcome      RegistrationOutcome `json:"outcome"`
		AutoApproved bool                `json:"auto_approved"`
		FirstAdmin   bool                `json:"first_admin,omitempty"`
	}

	LoginResult struct {
		Account Account `json:"account"`
		// OfferAdminRecovery is set when the designated admin failed a credential
		// check: the caller should surface the reset-admin-account affordance
		// instead of a plain error.
		OfferAdminRecovery bool `json:"admin_recovery,omitempty"`
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excluded ...Account) error
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		QueryAllAccounts(ctx context.Context) ([]Account, error)
		GetAccountByID(ctx context.Context, id string) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		// FilterAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Name or Email.
		FilterAccounts(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Account, error)
		UpdateAccount(ctx context.Context, acct Account, approved, verified *bool) (Account, error)
		DeleteAccountsByID(ctx context.Context, ids ...string) error
		// AdminExists reports whether any admin account has ever been persisted.
		AdminExists(ctx context.Context) (bool, error)
		// ClaimFirstAdmin atomically claims the one-time first-admin bootstrap slot.
		// It returns true exactly once across the lifetime of the account set.
		ClaimFirstAdmin(ctx context.Context) (bool, error)
		// ApproveAccountByEmail is the privileged approval path used by the
		// first-admin bootstrap.
		ApproveAccountByEmail(ctx context.Context, email string) (Account, error)
	}

	Service interface {
		Register(ctx context.Context, na NewAccount) (RegistrationResult, error)
		Login(ctx context.Context, email, password string) (LoginResult, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetAccountPassword) (Account, error)
		RequestEmailVerification(ctx context.Context, email string) error
		VerifyEmail(ctx context.Context, ve VerifyAccountEmail) (Account, error)
		Approve(ctx context.Context, id string) (Account, error)

		IsDesignatedAdmin(email string) bool
		Approved(acct Account) bool
		EnsureAdminAccount(ctx context.Context) (Account, error)
		ResetAdminAccount(ctx context.Context) (Account, error)

		Create(ctx context.Context, na NewAccount) (Account, error)
		QueryAll(ctx context.Context) ([]Account, error)
		GetByID(ctx context.Context, id string) (Account, error)
		GetByEmail(ctx context.Context, email string) (Account, error)
		Filter(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Account, error)
		Update(ctx context.Context, id string, ua UpdateAccount) (Account, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, acct Account) (Account, error)
		CheckEmailUniqueness(email string, excluded ...Account) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
		boot    core.BootstrapConfig
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		boot:    core.Conf.Bootstrap,
	}
}

func (svc *service) CheckEmailUniqueness(email string, excluded ...Account) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excluded...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// adminExists reports whether any admin account is already stored. A storage
// fault counts as "exists" so a bootstrap claim is never handed out blindly.
func (svc *service) adminExists(ctx context.Context) bool {
	exists, err := svc.repo.AdminExists(ctx)
	if err != nil {
		svc.logger.Error("checking for an existing admin", err)
		return true
	}
	return exists
}

// spendFirstAdmin burns the one-time bootstrap slot once an admin account
// exists by any path other than a won claim.
func (svc *service) spendFirstAdmin(ctx context.Context) {
	if _, err := svc.repo.ClaimFirstAdmin(ctx); err != nil {
		svc.logger.Error("spending first-admin slot", err)
	}
}

// Register creates a new account and applies the auto-approval rules:
// students, the designated admin and the very first admin skip the approval
// gate; everyone else stays pending until an administrator approves them.
func (svc *service) Register(ctx context.Context, na NewAccount) (RegistrationResult, error) {
	if existing, err := svc.repo.GetAccountByEmail(ctx, na.Email); err == nil {
		if svc.IsDesignatedAdmin(na.Email) {
			// not a failure: suggest login or password recovery instead
			return RegistrationResult{Account: existing, Outcome: OutcomeAdminAlreadyRegistered}, nil
		}
		return RegistrationResult{}, core.NewValidationError(
			ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return RegistrationResult{}, errors.Wrap(err, "checking existing email")
	}

	designated := svc.IsDesignatedAdmin(na.Email)
	role := na.Role
	if designated {
		role = RoleAdmin
	}

	// eligibility must be decided before the record exists, otherwise the new
	// row itself counts as the existing admin
	firstAdmin := role == RoleAdmin && !designated && !svc.adminExists(ctx)

	now := time.Now().UTC()
	acct := Account{
		ID:                   uuid.NewString(),
		Name:                 na.Name,
		Email:                na.Email,
		Role:                 role,
		RegistrationApproved: role == RoleStudent || designated,
		EmailVerified:        designated, // the break-glass identity never waits for mail
		Department:           null.NewString(na.Department, na.Department != ""),
		Course:               null.NewString(na.Course, na.Course != ""),
		GroupName:            null.NewString(na.GroupName, na.GroupName != ""),
		Organization:         null.NewString(na.Organization, na.Organization != ""),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return RegistrationResult{}, errors.Wrap(err, "setting password")
	}

	acct, err := svc.repo.CreateAccount(ctx, acct)
	if err != nil {
		return RegistrationResult{}, errors.Wrap(err, "creating account")
	}

	if designated {
		// an admin exists now; nobody may win the first-admin claim anymore
		svc.spendFirstAdmin(ctx)
		// best-effort immediate login with the just-supplied credentials
		if _, err := svc.Login(ctx, acct.Email, na.Password); err != nil {
			svc.logger.Error("designated admin post-registration login failed", err)
		}
		return RegistrationResult{Account: acct, Outcome: OutcomeRegistered, AutoApproved: true}, nil
	}

	if firstAdmin {
		claimed, err := svc.repo.ClaimFirstAdmin(ctx)
		if err != nil {
			svc.logger.Error("claiming first admin", err)
		}
		if claimed {
			approved, err := svc.repo.ApproveAccountByEmail(ctx, acct.Email)
			if err != nil {
				// privileged approval failed; fall back to a direct update
				svc.logger.Error("privileged first-admin approval failed", err)
				flag := true
				approved, err = svc.repo.UpdateAccount(ctx, acct, &flag, nil)
				if err != nil {
					return RegistrationResult{}, errors.Wrap(err, "approving first admin")
				}
			}
			svc.dispatchMail(svc.verificationMail(approved))
			return RegistrationResult{Account: approved, Outcome: OutcomeRegistered, AutoApproved: true, FirstAdmin: true}, nil
		}
	}

	svc.dispatchMail(svc.verificationMail(acct))
	if acct.IsApproved() {
		return RegistrationResult{Account: acct, Outcome: OutcomeRegistered, AutoApproved: true}, nil
	}
	svc.dispatchMail(svc.pendingApprovalMail(acct))
	return RegistrationResult{Account: acct, Outcome: OutcomePendingApproval}, nil
}

// Login checks the credentials against the stored account. For the designated
// admin the break-glass invariant is re-asserted against storage first, and a
// credential failure additionally flags the recovery affordance.
func (svc *service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = core.CleanString(email, true /* lower */)
	designated := svc.IsDesignatedAdmin(email)

	if designated {
		if _, err := svc.EnsureAdminAccount(ctx); err != nil && errors.Cause(err) != ErrNotFound {
			svc.logger.Error("re-asserting admin account on login", err)
		}
	}

	acct, err := svc.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return LoginResult{OfferAdminRecovery: designated}, ErrInvalidCredentials
		}
		return LoginResult{}, errors.Wrap(err, "finding account by email")
	}
	if err := acct.CheckPassword(password); err != nil {
		return LoginResult{OfferAdminRecovery: designated}, ErrInvalidCredentials
	}
	if !acct.EmailVerified && !designated {
		return LoginResult{}, ErrEmailNotVerified
	}

	acct, err = svc.SetLastLogin(ctx, acct)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "setting lastLogin")
	}
	return LoginResult{Account: acct}, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.dispatchMail(svc.passwordResetMail(acct))
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetAccountPassword) (Account, error) {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return Account{}, core.NewValidationError(errInvalidToken)
	}
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, core.NewValidationError(errInvalidToken)
		}
		return Account{}, errors.Wrap(err, "finding account by ID")
	}
	if err := verifyToken(acct, rp.Token, purposePasswordReset); err != nil {
		return Account{}, core.NewValidationError(err)
	}
	if err := acct.SetPassword(rp.Password); err != nil {
		return Account{}, errors.Wrap(err, "setting password")
	}
	acct.UpdatedAt = time.Now().UTC()
	acct, err = svc.repo.UpdateAccount(ctx, acct, nil, nil)
	return acct, errors.Wrap(err, "updating account")
}

func (svc *service) RequestEmailVerification(ctx context.Context, email string) error {
	if svc.IsDesignatedAdmin(email) {
		// auto-verified: no mail leaves the system for the break-glass identity
		_, err := svc.EnsureAdminAccount(ctx)
		return err
	}
	acct, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct.EmailVerified {
		return nil
	}
	svc.dispatchMail(svc.verificationMail(acct))
	return nil
}

func (svc *service) VerifyEmail(ctx context.Context, ve VerifyAccountEmail) (Account, error) {
	id, err := decodeUID(ve.UID)
	if err != nil {
		return Account{}, core.NewValidationError(errInvalidToken)
	}
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, core.NewValidationError(errInvalidToken)
		}
		return Account{}, errors.Wrap(err, "finding account by ID")
	}
	if svc.IsDesignatedAdmin(acct.Email) {
		return svc.EnsureAdminAccount(ctx)
	}
	if acct.EmailVerified {
		return acct, nil
	}
	if err := verifyToken(acct, ve.Token, purposeEmailVerification); err != nil {
		return Account{}, core.NewValidationError(err)
	}
	flag := true
	acct.UpdatedAt = time.Now().UTC()
	acct, err = svc.repo.UpdateAccount(ctx, acct, nil, &flag)
	return acct, errors.Wrap(err, "updating account")
}

func (svc *service) Approve(ctx context.Context, id string) (Account, error) {
	acct, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acct.RegistrationApproved {
		return acct, nil
	}
	flag := true
	acct.UpdatedAt = time.Now().UTC()
	acct, err = svc.repo.UpdateAccount(ctx, acct, &flag, nil)
	if err != nil {
		return Account{}, errors.Wrap(err, "updating account")
	}
	if acct.Role == RoleAdmin {
		svc.spendFirstAdmin(ctx)
	}
	svc.dispatchMail(svc.approvedMail(acct))
	return acct, nil
}

// Create registers an account on behalf of an administrator: it is approved
// and verified from the start.
func (svc *service) Create(ctx context.Context, na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acct := Account{
		ID:                   uuid.NewString(),
		Name:                 na.Name,
		Email:                na.Email,
		Role:                 na.Role,
		RegistrationApproved: true,
		EmailVerified:        true,
		Department:           null.NewString(na.Department, na.Department != ""),
		Course:               null.NewString(na.Course, na.Course != ""),
		GroupName:            null.NewString(na.GroupName, na.GroupName != ""),
		Organization:         null.NewString(na.Organization, na.Organization != ""),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	acct, err := svc.repo.CreateAccount(ctx, acct)
	if err != nil {
		return Account{}, err
	}
	if acct.Role == RoleAdmin {
		svc.spendFirstAdmin(ctx)
	}
	return acct, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAllAccounts(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Account, error) {
	return svc.repo.FilterAccounts(ctx, filter, orderings...)
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	acct := Account{
		ID:           id,
		Name:         ua.Name,
		Email:        ua.Email,
		Role:         ua.Role,
		Department:   null.NewString(ua.Department, ua.Department != ""),
		Course:       null.NewString(ua.Course, ua.Course != ""),
		GroupName:    null.NewString(ua.GroupName, ua.GroupName != ""),
		Organization: null.NewString(ua.Organization, ua.Organization != ""),
		UpdatedAt:    time.Now().UTC(),
	}
	if ua.Password != "" {
		if err := acct.SetPassword(ua.Password); err != nil {
			return Account{}, err
		}
	}
	acct, err := svc.repo.UpdateAccount(ctx, acct, ua.Approved, nil)
	if err != nil {
		return Account{}, err
	}
	if ua.Role == RoleAdmin {
		svc.spendFirstAdmin(ctx)
	}
	return acct, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAccountsByID(ctx, ids...)
}

func (svc *service) SetLastLogin(ctx context.Context, acct Account) (Account, error) {
	acct.LastLogin = time.Now().UTC()
	return svc.repo.UpdateAccount(ctx, acct, nil, nil)
}

// mail

func (svc *service) dispatchMail(msg *core.EmailMessage) {
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) passwordResetMail(acct Account) *core.EmailMessage {
	token := makeToken(acct, purposePasswordReset)
	// the login page reads type=recovery to swap in the set-new-password view
	link := fmt.Sprintf(
		"%s/login?type=recovery&email=%s&uid=%s&token=%s",
		core.Conf.FrontendBaseURL, url.QueryEscape(acct.Email), EncodeUID(acct), token,
	)
	return &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct{ Name, URL string }{acct.Name, link},
	}
}

func (svc *service) verificationMail(acct Account) *core.EmailMessage {
	token := makeToken(acct, purposeEmailVerification)
	link := fmt.Sprintf(
		"%s/verify-email?uid=%s&token=%s",
		core.Conf.FrontendBaseURL, EncodeUID(acct), token,
	)
	return &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Confirm Your Email Address",
		TemplateName: "email-verification",
		TemplateData: struct{ Name, URL string }{acct.Name, link},
	}
}

func (svc *service) pendingApprovalMail(acct Account) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Registration Received",
		TemplateName: "account-pending",
		TemplateData: struct{ Name, Role string }{acct.Name, acct.Role},
	}
}

func (svc *service) approvedMail(acct Account) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Account Approved",
		TemplateName: "account-approved",
		TemplateData: struct{ Name string }{acct.Name},
	}
}
