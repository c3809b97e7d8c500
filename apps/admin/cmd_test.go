package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	emailsvc "github.com/globalitacademy/yscip/services/email"
	dummydb "github.com/globalitacademy/yscip/storage/database/dummy"
)

var acctRepo account.Repository

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup(): %v", err)
	}
	acctRepo = dummydb.NewAccountRepository(db)

	return &commandLine{
		acctRepo: acctRepo,
		acctSvc: account.NewServiceMock(
			acctRepo,
			emailsvc.NewConsoleServiceMock(),
			core.NewStdLogger(log.New(io.Discard, "", 0)),
		),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "theme", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAccount(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"addaccount"}, wantErr: errHelp},
		{name: "missing name", args: []string{"addaccount", "-email", "ops@test.ru"}, wantErr: errHelp},
		{name: "bad role", args: []string{"addaccount", "-email", "ops@test.ru", "-name", "Ops", "-role", "lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"addaccount", "-email", "ops@test.ru", "-name", "Ops"}, wantErr: errHelp},
		{name: "creates admin", args: []string{"addaccount", "-email", "ops@test.ru", "-name", "Ops"}, extra: extra{pwd: "S3cretive"}},
		{name: "updates existing", args: []string{"addaccount", "-email", "ops@test.ru", "-name", "Ops Renamed", "-role", account.RoleLecturer}, extra: extra{pwd: "S3cretive2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	acct, err := acctRepo.GetAccountByEmail(context.Background(), "ops@test.ru")
	if err != nil {
		t.Fatalf("GetAccountByEmail(): %v", err)
	}
	if acct.Name != "Ops Renamed" {
		t.Errorf("name = %v; want Ops Renamed", acct.Name)
	}
	if acct.Role != account.RoleLecturer {
		t.Errorf("role = %v; want %v", acct.Role, account.RoleLecturer)
	}
	if !acct.RegistrationApproved || !acct.EmailVerified {
		t.Error("CLI accounts must come out approved and verified")
	}
	if err = acct.CheckPassword("S3cretive2"); err != nil {
		t.Error("password not updated")
	}

	// the CLI-created admin burned the one-time bootstrap slot
	claimed, err := acctRepo.ClaimFirstAdmin(context.Background())
	if err != nil {
		t.Fatalf("ClaimFirstAdmin(): %v", err)
	}
	if claimed {
		t.Error("the first-admin slot must be spent once an admin is added from the CLI")
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	if err := cli.addAccount("User", "awe@test.ru", "0riginal!", account.RoleStudent); err != nil {
		t.Fatalf("addAccount(): %v", err)
	}
	orig, err := acctRepo.GetAccountByEmail(context.Background(), "awe@test.ru")
	if err != nil {
		t.Fatalf("GetAccountByEmail(): %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "awe@test.ru"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@test.ru"}, extra: extra{pwd: "lol"}, wantErr: account.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "awe@test.ru"}, extra: extra{pwd: "N3wSecret!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := acctRepo.GetAccountByEmail(context.Background(), "awe@test.ru")
				if err != nil {
					t.Fatalf("GetAccountByEmail(): %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, orig.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_resetAdmin(t *testing.T) {
	cli := setup(t)

	if err := cli.run([]string{"admin", "resetadmin"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}

	acct, err := acctRepo.GetAccountByEmail(context.Background(), core.Conf.Bootstrap.AdminEmail)
	if err != nil {
		t.Fatalf("GetAccountByEmail(): %v", err)
	}
	if acct.Role != account.RoleAdmin {
		t.Errorf("role = %v; want %v", acct.Role, account.RoleAdmin)
	}
	if err = acct.CheckPassword(core.Conf.Bootstrap.AdminFallbackPassword); err != nil {
		t.Error("fallback password not set")
	}
}
