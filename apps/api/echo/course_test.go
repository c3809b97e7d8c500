package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
)

func Test_courseApi(t *testing.T) {
	deps := setupServer(t)

	admin := createAccount(t, deps.acctRepo, "Admin", "admin@test.ru", "", account.RoleAdmin, true, true)
	lecturer := createAccount(t, deps.acctRepo, "Lecturer", "lect@test.ru", "", account.RoleLecturer, true, true)
	student := createAccount(t, deps.acctRepo, "Student", "stu@test.ru", "", account.RoleStudent, true, true)
	unapproved := createAccount(t, deps.acctRepo, "Pending", "pending@test.ru", "", account.RoleLecturer, false, true)

	newCourse := func(code, title string) []byte {
		return marchallObj(t, course.NewCourse{Code: code, Title: title, Department: "CS"})
	}

	t.Run("unapproved lecturer is locked out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, unapproved, false))
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("query code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("student cannot create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, student, true), newCourse("cs101", "Intro"))
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("create code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	var crs course.Course

	t.Run("lecturer creates and owns the course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, lecturer, true), newCourse("cs101", "Intro"))
		deps.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("create code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
			t.Fatalf("unmarshalling Course: %v", err)
		}
		if crs.LecturerID.String != lecturer.ID {
			t.Errorf("lecturer_id = %v; want %v", crs.LecturerID.String, lecturer.ID)
		}
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, admin, true), newCourse("cs101", "Clone"))
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("create code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("student reads the catalogue", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, student, true))
		deps.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("query code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var crss []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &crss); err != nil {
			t.Fatalf("unmarshalling courses: %v", err)
		}
		if len(crss) != 1 {
			t.Errorf("courses = %d; want 1", len(crss))
		}
	})

	t.Run("other lecturer cannot update", func(t *testing.T) {
		other := createAccount(t, deps.acctRepo, "Other", "other@test.ru", "", account.RoleLecturer, true, true)
		data := marchallObj(t, course.UpdateCourse{Title: "Hijacked", Department: "CS"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, getToken(t, other, true), data)
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("update code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("admin deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, getToken(t, admin, true))
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("destroy code = %v; want %v", rec.Code, http.StatusNoContent)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID, getToken(t, admin, true))
		deps.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("retrieve code = %v; want %v", rec.Code, http.StatusNotFound)
		}
	})
}
