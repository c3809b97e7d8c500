package dummydb

import (
	"context"

	"github.com/globalitacademy/yscip/core/project"
)

type projectRepository struct {
	themes *themeTable
	groups *groupTable
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{themes: db.theme, groups: db.group}
}

func (repo *projectRepository) CreateTheme(_ context.Context, th project.Theme) (project.Theme, error) {
	repo.themes.Lock()
	defer repo.themes.Unlock()
	repo.themes.table[th.ID] = &th
	return th, nil
}

func (repo *projectRepository) QueryAllThemes(_ context.Context) ([]project.Theme, error) {
	repo.themes.RLock()
	defer repo.themes.RUnlock()

	themes := make([]project.Theme, 0, len(repo.themes.table))
	for _, th := range repo.themes.table {
		themes = append(themes, *th)
	}
	return themes, nil
}

func (repo *projectRepository) QueryThemesBySupervisor(_ context.Context, supervisorID string) ([]project.Theme, error) {
	repo.themes.RLock()
	defer repo.themes.RUnlock()

	var themes []project.Theme
	for _, th := range repo.themes.table {
		if th.SupervisorID == supervisorID {
			themes = append(themes, *th)
		}
	}
	return themes, nil
}

func (repo *projectRepository) GetThemeByID(_ context.Context, id string) (project.Theme, error) {
	repo.themes.RLock()
	defer repo.themes.RUnlock()

	if th, ok := repo.themes.table[id]; ok {
		return *th, nil
	}
	return project.Theme{}, project.ErrThemeNotFound
}

func (repo *projectRepository) UpdateTheme(_ context.Context, th project.Theme) (project.Theme, error) {
	repo.themes.Lock()
	defer repo.themes.Unlock()

	if _, ok := repo.themes.table[th.ID]; !ok {
		return project.Theme{}, project.ErrThemeNotFound
	}
	repo.themes.table[th.ID] = &th
	return th, nil
}

func (repo *projectRepository) DeleteThemesByID(_ context.Context, ids ...string) error {
	repo.themes.Lock()
	defer repo.themes.Unlock()
	for _, id := range ids {
		delete(repo.themes.table, id)
	}
	return nil
}

func (repo *projectRepository) CreateGroup(_ context.Context, grp project.Group) (project.Group, error) {
	repo.groups.Lock()
	defer repo.groups.Unlock()
	repo.groups.table[grp.ID] = &grp
	return grp, nil
}

func (repo *projectRepository) QueryGroupsByTheme(_ context.Context, themeID string) ([]project.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	var groups []project.Group
	for _, grp := range repo.groups.table {
		if grp.ThemeID == themeID {
			groups = append(groups, *grp)
		}
	}
	return groups, nil
}

func (repo *projectRepository) QueryGroupsByMember(_ context.Context, accountID string) ([]project.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	var groups []project.Group
	for _, grp := range repo.groups.table {
		for _, id := range grp.MemberIDs {
			if id == accountID {
				groups = append(groups, *grp)
				break
			}
		}
	}
	return groups, nil
}

func (repo *projectRepository) GetGroupByID(_ context.Context, id string) (project.Group, error) {
	repo.groups.RLock()
	defer repo.groups.RUnlock()

	if grp, ok := repo.groups.table[id]; ok {
		return *grp, nil
	}
	return project.Group{}, project.ErrGroupNotFound
}

func (repo *projectRepository) UpdateGroup(_ context.Context, grp project.Group) (project.Group, error) {
	repo.groups.Lock()
	defer repo.groups.Unlock()

	if _, ok := repo.groups.table[grp.ID]; !ok {
		return project.Group{}, project.ErrGroupNotFound
	}
	repo.groups.table[grp.ID] = &grp
	return grp, nil
}

func (repo *projectRepository) DeleteGroupsByID(_ context.Context, ids ...string) error {
	repo.groups.Lock()
	defer repo.groups.Unlock()
	for _, id := range ids {
		delete(repo.groups.table, id)
	}
	return nil
}
