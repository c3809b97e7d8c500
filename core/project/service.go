package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/globalitacademy/yscip/core"
)

var (
	ErrThemeNotFound = errors.New("project theme not found")
	ErrGroupNotFound = errors.New("project group not found")
	ErrGroupFull     = errors.New("the group is already at capacity")
	ErrMemberExists  = errors.New("the account is already a member of this group")
	ErrMemberMissing = errors.New("the account is not a member of this group")
)

type (
	Repository interface {
		CreateTheme(ctx context.Context, th Theme) (Theme, error)
		QueryAllThemes(ctx context.Context) ([]Theme, error)
		QueryThemesBySupervisor(ctx context.Context, supervisorID string) ([]Theme, error)
		GetThemeByID(ctx context.Context, id string) (Theme, error)
		UpdateTheme(ctx context.Context, th Theme) (Theme, error)
		DeleteThemesByID(ctx context.Context, ids ...string) error

		CreateGroup(ctx context.Context, grp Group) (Group, error)
		QueryGroupsByTheme(ctx context.Context, themeID string) ([]Group, error)
		QueryGroupsByMember(ctx context.Context, accountID string) ([]Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroupsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CreateTheme(ctx context.Context, nt NewTheme) (Theme, error)
		QueryThemes(ctx context.Context) ([]Theme, error)
		QueryThemesBySupervisor(ctx context.Context, supervisorID string) ([]Theme, error)
		GetTheme(ctx context.Context, id string) (Theme, error)
		UpdateTheme(ctx context.Context, id string, ut UpdateTheme) (Theme, error)
		DeleteThemes(ctx context.Context, ids ...string) error

		CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
		QueryGroupsByTheme(ctx context.Context, themeID string) ([]Group, error)
		QueryGroupsByMember(ctx context.Context, accountID string) ([]Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		AddGroupMember(ctx context.Context, groupID, accountID string) (Group, error)
		RemoveGroupMember(ctx context.Context, groupID, accountID string) (Group, error)
		DeleteGroups(ctx context.Context, ids ...string) error
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

func (svc *service) CreateTheme(ctx context.Context, nt NewTheme) (Theme, error) {
	now := time.Now().UTC()
	th := Theme{
		ID:           uuid.NewString(),
		Title:        nt.Title,
		Summary:      null.NewString(nt.Summary, nt.Summary != ""),
		SupervisorID: nt.SupervisorID,
		Department:   null.NewString(nt.Department, nt.Department != ""),
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	th, err := svc.repo.CreateTheme(ctx, th)
	return th, errors.Wrap(err, "creating theme")
}

func (svc *service) QueryThemes(ctx context.Context) ([]Theme, error) {
	return svc.repo.QueryAllThemes(ctx)
}

func (svc *service) QueryThemesBySupervisor(ctx context.Context, supervisorID string) ([]Theme, error) {
	return svc.repo.QueryThemesBySupervisor(ctx, supervisorID)
}

func (svc *service) GetTheme(ctx context.Context, id string) (Theme, error) {
	return svc.repo.GetThemeByID(ctx, id)
}

func (svc *service) UpdateTheme(ctx context.Context, id string, ut UpdateTheme) (Theme, error) {
	th, err := svc.repo.GetThemeByID(ctx, id)
	if err != nil {
		return Theme{}, err
	}
	th.Title = ut.Title
	if ut.Summary != "" {
		th.Summary = null.StringFrom(ut.Summary)
	}
	if ut.Department != "" {
		th.Department = null.StringFrom(ut.Department)
	}
	if ut.Status != "" {
		th.Status = ut.Status
	}
	th.UpdatedAt = time.Now().UTC()
	th, err = svc.repo.UpdateTheme(ctx, th)
	return th, errors.Wrap(err, "updating theme")
}

func (svc *service) DeleteThemes(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteThemesByID(ctx, ids...)
}

func (svc *service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	if _, err := svc.repo.GetThemeByID(ctx, ng.ThemeID); err != nil {
		return Group{}, err
	}
	now := time.Now().UTC()
	grp := Group{
		ID:        uuid.NewString(),
		ThemeID:   ng.ThemeID,
		Name:      ng.Name,
		Capacity:  ng.Capacity,
		MemberIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	grp, err := svc.repo.CreateGroup(ctx, grp)
	return grp, errors.Wrap(err, "creating group")
}

func (svc *service) QueryGroupsByTheme(ctx context.Context, themeID string) ([]Group, error) {
	return svc.repo.QueryGroupsByTheme(ctx, themeID)
}

func (svc *service) QueryGroupsByMember(ctx context.Context, accountID string) ([]Group, error) {
	return svc.repo.QueryGroupsByMember(ctx, accountID)
}

func (svc *service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroupByID(ctx, id)
}

func (svc *service) AddGroupMember(ctx context.Context, groupID, accountID string) (Group, error) {
	grp, err := svc.repo.GetGroupByID(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	for _, id := range grp.MemberIDs {
		if id == accountID {
			return Group{}, core.NewValidationError(ErrMemberExists)
		}
	}
	if len(grp.MemberIDs) >= grp.Capacity {
		return Group{}, core.NewValidationError(ErrGroupFull)
	}
	grp.MemberIDs = append(grp.MemberIDs, accountID)
	grp.UpdatedAt = time.Now().UTC()
	grp, err = svc.repo.UpdateGroup(ctx, grp)
	return grp, errors.Wrap(err, "updating group")
}

func (svc *service) RemoveGroupMember(ctx context.Context, groupID, accountID string) (Group, error) {
	grp, err := svc.repo.GetGroupByID(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	idx := -1
	for i, id := range grp.MemberIDs {
		if id == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Group{}, core.NewValidationError(ErrMemberMissing)
	}
	grp.MemberIDs = append(grp.MemberIDs[:idx], grp.MemberIDs[idx+1:]...)
	grp.UpdatedAt = time.Now().UTC()
	grp, err = svc.repo.UpdateGroup(ctx, grp)
	return grp, errors.Wrap(err, "updating group")
}

func (svc *service) DeleteGroups(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteGroupsByID(ctx, ids...)
}
