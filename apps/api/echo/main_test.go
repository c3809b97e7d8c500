package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/core/project"
	emailsvc "github.com/globalitacademy/yscip/services/email"
	"github.com/globalitacademy/yscip/services/sessionstore"
	dummydb "github.com/globalitacademy/yscip/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testDeps struct {
	app        Server
	acctRepo   account.Repository
	acctSvc    account.Service
	courseSvc  course.Service
	projectSvc project.Service
	notifSvc   notification.Service
	sessions   sessionstore.Store
}

func setupServer(t *testing.T) testDeps {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setupServer(): %v", err)
	}
	logger := core.NewStdLogger(log.New(io.Discard, "", 0))

	acctRepo := dummydb.NewAccountRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock()
	acctSvc := account.NewServiceMock(acctRepo, mailSvc, logger)
	courseSvc := course.NewService(dummydb.NewCourseRepository(db), logger)
	projectSvc := project.NewService(dummydb.NewProjectRepository(db), logger)
	notifSvc := notification.NewService(dummydb.NewNotificationRepository(db), logger)
	sessions := sessionstore.NewMemoryStore()

	app := NewServer(&Options{
		DisableReqLogs: true,
		AccountSvc:     acctSvc,
		CourseSvc:      courseSvc,
		ProjectSvc:     projectSvc,
		NotifSvc:       notifSvc,
		Sessions:       sessions,
		Logger:         logger,
	})
	return testDeps{
		app:        app,
		acctRepo:   acctRepo,
		acctSvc:    acctSvc,
		courseSvc:  courseSvc,
		projectSvc: projectSvc,
		notifSvc:   notifSvc,
		sessions:   sessions,
	}
}

func createAccount(
	t *testing.T,
	repo account.Repository,
	name, email, pwd, role string,
	approved, verified bool,
) account.Account {
	t.Helper()

	now := time.Now().UTC()
	acct := account.Account{
		ID:                   uuid.NewString(),
		Name:                 name,
		Email:                email,
		Role:                 role,
		RegistrationApproved: approved,
		EmailVerified:        verified,
		Department:           null.String{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("createAccount(): %v", err)
		}
	}
	acct, err := repo.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("createAccount(): %v", err)
	}
	return acct
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, acct account.Account, approved bool) string {
	t.Helper()
	token, err := GenerateToken(GetAccountClaims(acct, approved))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
