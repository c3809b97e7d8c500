package project_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/project"
	dummydb "github.com/globalitacademy/yscip/storage/database/dummy"
)

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Enable(bool)                        {}
func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func newTestService(t *testing.T) project.Service {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() error = %v", err)
	}
	return project.NewService(dummydb.NewProjectRepository(db), nopLogger{})
}

func mustCreateTheme(t *testing.T, svc project.Service, title, supervisorID string) project.Theme {
	t.Helper()
	th, err := svc.CreateTheme(context.Background(), project.NewTheme{
		Title:        title,
		SupervisorID: supervisorID,
	})
	if err != nil {
		t.Fatalf("CreateTheme() error = %v", err)
	}
	return th
}

func TestServiceCreateTheme(t *testing.T) {
	svc := newTestService(t)

	th := mustCreateTheme(t, svc, "Compiler playground", "sup1")
	if th.ID == "" {
		t.Error("CreateTheme() did not assign an ID")
	}
	if th.Status != project.StatusDraft {
		t.Errorf("Status = %v; want %v", th.Status, project.StatusDraft)
	}

	mine, err := svc.QueryThemesBySupervisor(context.Background(), "sup1")
	if err != nil {
		t.Fatalf("QueryThemesBySupervisor() error = %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("QueryThemesBySupervisor() returned %d themes; want 1", len(mine))
	}
}

func TestServiceUpdateTheme(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	th := mustCreateTheme(t, svc, "Compiler playground", "sup1")

	updated, err := svc.UpdateTheme(ctx, th.ID, project.UpdateTheme{
		Title:  th.Title,
		Status: project.StatusPublished,
	})
	if err != nil {
		t.Fatalf("UpdateTheme() error = %v", err)
	}
	if updated.Status != project.StatusPublished {
		t.Errorf("Status = %v; want %v", updated.Status, project.StatusPublished)
	}
	if updated.Title != th.Title {
		t.Errorf("Title = %v; want it unchanged (%v)", updated.Title, th.Title)
	}

	if _, err = svc.UpdateTheme(ctx, "nope", project.UpdateTheme{Title: "x"}); errors.Cause(err) != project.ErrThemeNotFound {
		t.Errorf("UpdateTheme(unknown) error = %v; want %v", err, project.ErrThemeNotFound)
	}
}

func TestServiceCreateGroup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	th := mustCreateTheme(t, svc, "Compiler playground", "sup1")

	grp, err := svc.CreateGroup(ctx, project.NewGroup{ThemeID: th.ID, Name: "Team A", Capacity: 2})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if len(grp.MemberIDs) != 0 {
		t.Errorf("new group has %d members; want 0", len(grp.MemberIDs))
	}

	_, err = svc.CreateGroup(ctx, project.NewGroup{ThemeID: "nope", Name: "Team B", Capacity: 2})
	if errors.Cause(err) != project.ErrThemeNotFound {
		t.Errorf("CreateGroup(unknown theme) error = %v; want %v", err, project.ErrThemeNotFound)
	}
}

func TestServiceGroupMembership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	th := mustCreateTheme(t, svc, "Compiler playground", "sup1")
	grp, err := svc.CreateGroup(ctx, project.NewGroup{ThemeID: th.ID, Name: "Team A", Capacity: 2})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if _, err = svc.AddGroupMember(ctx, grp.ID, "stud1"); err != nil {
		t.Fatalf("AddGroupMember(stud1) error = %v", err)
	}

	// joining twice must not double-count the member
	_, err = svc.AddGroupMember(ctx, grp.ID, "stud1")
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || errors.Cause(vErr.Err) != project.ErrMemberExists {
		t.Errorf("AddGroupMember(duplicate) error = %v; want %v", err, project.ErrMemberExists)
	}

	if _, err = svc.AddGroupMember(ctx, grp.ID, "stud2"); err != nil {
		t.Fatalf("AddGroupMember(stud2) error = %v", err)
	}

	_, err = svc.AddGroupMember(ctx, grp.ID, "stud3")
	if !errors.As(err, &vErr) || errors.Cause(vErr.Err) != project.ErrGroupFull {
		t.Errorf("AddGroupMember(over capacity) error = %v; want %v", err, project.ErrGroupFull)
	}

	_, err = svc.RemoveGroupMember(ctx, grp.ID, "stud3")
	if !errors.As(err, &vErr) || errors.Cause(vErr.Err) != project.ErrMemberMissing {
		t.Errorf("RemoveGroupMember(non-member) error = %v; want %v", err, project.ErrMemberMissing)
	}

	grp, err = svc.RemoveGroupMember(ctx, grp.ID, "stud1")
	if err != nil {
		t.Fatalf("RemoveGroupMember(stud1) error = %v", err)
	}
	if len(grp.MemberIDs) != 1 || grp.MemberIDs[0] != "stud2" {
		t.Errorf("MemberIDs = %v; want [stud2]", grp.MemberIDs)
	}

	joined, err := svc.QueryGroupsByMember(ctx, "stud2")
	if err != nil {
		t.Fatalf("QueryGroupsByMember() error = %v", err)
	}
	if len(joined) != 1 {
		t.Errorf("QueryGroupsByMember() returned %d groups; want 1", len(joined))
	}
}
