package course

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
)

type Course struct {
	ID          string      `json:"id" db:"id"`
	Code        string      `json:"code" db:"code"`
	Title       string      `json:"title" db:"title"`
	Description null.String `json:"description" db:"description"`
	Department  string      `json:"department" db:"department"`
	LecturerID  null.String `json:"lecturer_id" db:"lecturer_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// NewCourse defines what information may be provided to create a new Course.
type NewCourse struct {
	Code        string `json:"code" validate:"required,alphanum_"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Department  string `json:"department" validate:"required"`
	LecturerID  string `json:"lecturer_id"`
}

func (nc *NewCourse) Validate() error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Department = core.CleanString(nc.Department)
	return core.Validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	LecturerID  string `json:"lecturer_id"`
}

func (uc *UpdateCourse) Validate(orig Course) error {
	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}

	dept := core.CleanString(uc.Department)
	if dept != "" {
		uc.Department = dept
	} else {
		uc.Department = orig.Department
	}

	uc.Description = core.CleanString(uc.Description)
	return core.Validate.Struct(uc)
}
