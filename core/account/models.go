package account

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/globalitacademy/yscip/core"
)

// Roles. The set is closed: registration rejects anything else.
const (
	RoleAdmin          = "admin"
	RoleSupervisor     = "supervisor"
	RoleProjectManager = "project_manager"
	RoleInstructor     = "instructor"
	RoleLecturer       = "lecturer"
	RoleStudent        = "student"
	RoleEmployer       = "employer"
)

var (
	AllRoles = []string{
		RoleAdmin,
		RoleSupervisor,
		RoleProjectManager,
		RoleInstructor,
		RoleLecturer,
		RoleStudent,
		RoleEmployer,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Lecturer", Value: RoleLecturer},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Supervisor", Value: RoleSupervisor},
		{Name: "Project Manager", Value: RoleProjectManager},
		{Name: "Employer", Value: RoleEmployer},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Account struct {
	ID                   string      `json:"id" db:"id"`
	Name                 string      `json:"name" db:"name"`
	Email                string      `json:"email" db:"email"`
	Role                 string      `json:"role" db:"role"`
	RegistrationApproved bool        `json:"registration_approved" db:"registration_approved"`
	EmailVerified        bool        `json:"email_verified" db:"email_verified"`
	Department           null.String `json:"department,omitempty" db:"department"`
	Course               null.String `json:"course,omitempty" db:"course"`
	GroupName            null.String `json:"group_name,omitempty" db:"group_name"`
	Organization         null.String `json:"organization,omitempty" db:"organization"`
	PasswordHash         []byte      `json:"-" db:"password_hash"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt            time.Time   `json:"updated_at" db:"updated_at"` // UTC
	LastLogin            time.Time   `json:"last_login" db:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a *Account) IsStudent() bool { return a.Role == RoleStudent }

func (a *Account) IsLecturer() bool {
	return a.Role == RoleLecturer || a.Role == RoleInstructor
}

func (a *Account) IsSupervisor() bool {
	return a.Role == RoleSupervisor || a.Role == RoleProjectManager
}

func (a *Account) IsEmployer() bool { return a.Role == RoleEmployer }

// IsApproved reports whether the account passed the approval gate.
// Students are always considered approved regardless of the stored flag.
// The designated admin is handled one level up (Service.Approved): the
// predicate needs the configured break-glass identity.
func (a *Account) IsApproved() bool {
	return a.Role == RoleStudent || a.RegistrationApproved
}

// NewAccount contains information needed to register a new Account.
type NewAccount struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
	Department      string `json:"department"`
	Course          string `json:"course"`
	GroupName       string `json:"group_name"`
	Organization    string `json:"organization"`
}

func (na *NewAccount) Validate() error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Department = core.CleanString(na.Department)
	na.Course = core.CleanString(na.Course)
	na.GroupName = core.CleanString(na.GroupName)
	na.Organization = core.CleanString(na.Organization)
	return core.Validate.Struct(na)
}

// UpdateAccount defines what information may be provided to modify an existing Account.
type UpdateAccount struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"omitempty,role"`
	Approved        *bool  `json:"registration_approved"`
	Department      string `json:"department"`
	Course          string `json:"course"`
	GroupName       string `json:"group_name"`
	Organization    string `json:"organization"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (ua *UpdateAccount) Validate(orig Account, svc Service) error {
	name := core.CleanString(ua.Name)
	if name != "" {
		ua.Name = name
	} else {
		ua.Name = orig.Name
	}

	email := core.CleanString(ua.Email, true /* lower */)
	if email != "" {
		ua.Email = email
	} else {
		ua.Email = orig.Email
	}

	if err := core.Validate.Struct(ua); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ua.Email, orig)
}

type ResetAccountPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetAccountPassword) Validate() error { return core.Validate.Struct(rp) }

type VerifyAccountEmail struct {
	Token string `json:"token,omitempty" validate:"required"`
	UID   string `json:"uid,omitempty" validate:"required"`
}

func (ve VerifyAccountEmail) Validate() error { return core.Validate.Struct(ve) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	Approved    *bool     `query:"approved"`
	Department  string    `query:"department"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Approved == nil &&
		qf.Department == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Department = core.CleanString(qf.Department)
}
