package dummydb

import (
	"context"
	"strings"

	"github.com/globalitacademy/yscip/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		courses = append(courses, *c)
	}
	return courses
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excluded ...course.Course) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, crs := range repo.query() {
		if !strings.EqualFold(crs.Code, code) {
			continue
		}
		var excl bool
		for _, e := range excluded {
			if e.ID == crs.ID {
				excl = true
				break
			}
		}
		if !excl {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses(_ context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCoursesByLecturer(_ context.Context, lecturerID string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var courses []course.Course
	for _, crs := range repo.query() {
		if crs.LecturerID.String == lecturerID {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByDepartment(_ context.Context, department string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var courses []course.Course
	for _, crs := range repo.query() {
		if strings.EqualFold(crs.Department, department) {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
