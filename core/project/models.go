package project

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
)

// Theme statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type (
	// Theme is a project topic proposed by a supervisor for students to
	// pick up.
	Theme struct {
		ID           string      `json:"id" db:"id"`
		Title        string      `json:"title" db:"title"`
		Summary      null.String `json:"summary" db:"summary"`
		SupervisorID string      `json:"supervisor_id" db:"supervisor_id"`
		Department   null.String `json:"department" db:"department"`
		Status       string      `json:"status" db:"status"`
		CreatedAt    time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	}

	// Group is a student team working on a Theme. Capacity bounds the
	// member count.
	Group struct {
		ID        string    `json:"id" db:"id"`
		ThemeID   string    `json:"theme_id" db:"theme_id"`
		Name      string    `json:"name" db:"name"`
		Capacity  int       `json:"capacity" db:"capacity"`
		MemberIDs []string  `json:"member_ids" db:"-"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	}
)

func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived
}

type NewTheme struct {
	Title        string `json:"title" validate:"required"`
	Summary      string `json:"summary"`
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Department   string `json:"department"`
}

func (nt *NewTheme) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Summary = core.CleanString(nt.Summary)
	nt.Department = core.CleanString(nt.Department)
	return core.Validate.Struct(nt)
}

type UpdateTheme struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Department string `json:"department"`
	Status     string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (ut *UpdateTheme) Validate(orig Theme) error {
	title := core.CleanString(ut.Title)
	if title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	ut.Summary = core.CleanString(ut.Summary)
	ut.Department = core.CleanString(ut.Department)
	return core.Validate.Struct(ut)
}

type NewGroup struct {
	ThemeID  string `json:"theme_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
}

func (ng *NewGroup) Validate() error {
	ng.Name = core.CleanString(ng.Name)
	return core.Validate.Struct(ng)
}
