package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
)

var (
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excluded ...Course) error
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCoursesByLecturer(ctx context.Context, lecturerID string) ([]Course, error)
		QueryCoursesByDepartment(ctx context.Context, department string) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		QueryAll(ctx context.Context) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		QueryByLecturer(ctx context.Context, lecturerID string) ([]Course, error)
		QueryByDepartment(ctx context.Context, department string) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.repo.CheckCodeUniqueness(ctx, nc.Code); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Course{}, err
	}

	now := time.Now().UTC()
	crs := Course{
		ID:          uuid.NewString(),
		Code:        nc.Code,
		Title:       nc.Title,
		Description: null.NewString(nc.Description, nc.Description != ""),
		Department:  nc.Department,
		LecturerID:  null.NewString(nc.LecturerID, nc.LecturerID != ""),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	return crs, errors.Wrap(err, "creating course")
}

func (svc *service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) QueryByLecturer(ctx context.Context, lecturerID string) ([]Course, error) {
	return svc.repo.QueryCoursesByLecturer(ctx, lecturerID)
}

func (svc *service) QueryByDepartment(ctx context.Context, department string) ([]Course, error) {
	return svc.repo.QueryCoursesByDepartment(ctx, department)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	crs.Title = uc.Title
	crs.Department = uc.Department
	if uc.Description != "" {
		crs.Description = null.StringFrom(uc.Description)
	}
	if uc.LecturerID != "" {
		crs.LecturerID = null.StringFrom(uc.LecturerID)
	}
	crs.UpdatedAt = time.Now().UTC()
	crs, err = svc.repo.UpdateCourse(ctx, crs)
	return crs, errors.Wrap(err, "updating course")
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}
