package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

const courseColumns = `id, code, title, description, department, lecturer_id, created_at, updated_at`

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excluded ...course.Course) error {
	exclIDs := make([]string, 0, len(excluded))
	for _, e := range excluded {
		exclIDs = append(exclIDs, e.ID)
	}

	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM course WHERE LOWER(code) = LOWER($1) AND id != ALL($2))`,
		code, pq.Array(exclIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking code uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO course (`+courseColumns+`)
		 VALUES (:id, :code, :title, :description, :department, :lecturer_id, :created_at, :updated_at)`,
		crs,
	)
	return crs, errors.Wrap(err, "inserting course")
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.SelectContext(ctx, &courses,
		`SELECT `+courseColumns+` FROM course ORDER BY code`)
	return courses, errors.Wrap(err, "querying courses")
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := repo.db.GetContext(ctx, &crs,
		`SELECT `+courseColumns+` FROM course WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	return crs, errors.Wrap(err, "getting course by ID")
}

func (repo *courseRepository) QueryCoursesByLecturer(ctx context.Context, lecturerID string) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.SelectContext(ctx, &courses,
		`SELECT `+courseColumns+` FROM course WHERE lecturer_id = $1 ORDER BY code`, lecturerID)
	return courses, errors.Wrap(err, "querying courses by lecturer")
}

func (repo *courseRepository) QueryCoursesByDepartment(ctx context.Context, department string) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.SelectContext(ctx, &courses,
		`SELECT `+courseColumns+` FROM course WHERE LOWER(department) = LOWER($1) ORDER BY code`, department)
	return courses, errors.Wrap(err, "querying courses by department")
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE course
		 SET title = :title, description = :description, department = :department,
			lecturer_id = :lecturer_id, updated_at = :updated_at
		 WHERE id = :id`,
		crs,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM course WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting courses")
}
