package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core/project"
)

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil)

func NewProjectRepository(db *sqlx.DB) project.Repository {
	return &projectRepository{db: db}
}

const (
	themeColumns = `id, title, summary, supervisor_id, department, status, created_at, updated_at`
	groupColumns = `id, theme_id, name, capacity, created_at, updated_at`
)

func (repo *projectRepository) CreateTheme(ctx context.Context, th project.Theme) (project.Theme, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO project_theme (`+themeColumns+`)
		 VALUES (:id, :title, :summary, :supervisor_id, :department, :status, :created_at, :updated_at)`,
		th,
	)
	return th, errors.Wrap(err, "inserting theme")
}

func (repo *projectRepository) QueryAllThemes(ctx context.Context) ([]project.Theme, error) {
	themes := make([]project.Theme, 0)
	err := repo.db.SelectContext(ctx, &themes,
		`SELECT `+themeColumns+` FROM project_theme ORDER BY created_at DESC`)
	return themes, errors.Wrap(err, "querying themes")
}

func (repo *projectRepository) QueryThemesBySupervisor(ctx context.Context, supervisorID string) ([]project.Theme, error) {
	themes := make([]project.Theme, 0)
	err := repo.db.SelectContext(ctx, &themes,
		`SELECT `+themeColumns+` FROM project_theme WHERE supervisor_id = $1 ORDER BY created_at DESC`,
		supervisorID)
	return themes, errors.Wrap(err, "querying themes by supervisor")
}

func (repo *projectRepository) GetThemeByID(ctx context.Context, id string) (project.Theme, error) {
	var th project.Theme
	err := repo.db.GetContext(ctx, &th,
		`SELECT `+themeColumns+` FROM project_theme WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return project.Theme{}, project.ErrThemeNotFound
	}
	return th, errors.Wrap(err, "getting theme by ID")
}

func (repo *projectRepository) UpdateTheme(ctx context.Context, th project.Theme) (project.Theme, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE project_theme
		 SET title = :title, summary = :summary, department = :department,
			status = :status, updated_at = :updated_at
		 WHERE id = :id`,
		th,
	)
	if err != nil {
		return project.Theme{}, errors.Wrap(err, "updating theme")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return project.Theme{}, project.ErrThemeNotFound
	}
	return th, nil
}

func (repo *projectRepository) DeleteThemesByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM project_theme WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting themes")
}

func (repo *projectRepository) CreateGroup(ctx context.Context, grp project.Group) (project.Group, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO project_group (`+groupColumns+`)
		 VALUES (:id, :theme_id, :name, :capacity, :created_at, :updated_at)`,
		grp,
	)
	return grp, errors.Wrap(err, "inserting group")
}

func (repo *projectRepository) QueryGroupsByTheme(ctx context.Context, themeID string) ([]project.Group, error) {
	groups := make([]project.Group, 0)
	err := repo.db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM project_group WHERE theme_id = $1 ORDER BY name`, themeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups by theme")
	}
	for i := range groups {
		if err := repo.loadMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (repo *projectRepository) QueryGroupsByMember(ctx context.Context, accountID string) ([]project.Group, error) {
	groups := make([]project.Group, 0)
	err := repo.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.theme_id, g.name, g.capacity, g.created_at, g.updated_at
		 FROM project_group g
		 JOIN project_group_member m ON m.group_id = g.id
		 WHERE m.account_id = $1
		 ORDER BY g.name`,
		accountID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups by member")
	}
	for i := range groups {
		if err := repo.loadMembers(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (repo *projectRepository) GetGroupByID(ctx context.Context, id string) (project.Group, error) {
	var grp project.Group
	err := repo.db.GetContext(ctx, &grp,
		`SELECT `+groupColumns+` FROM project_group WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return project.Group{}, project.ErrGroupNotFound
	}
	if err != nil {
		return project.Group{}, errors.Wrap(err, "getting group by ID")
	}
	if err := repo.loadMembers(ctx, &grp); err != nil {
		return project.Group{}, err
	}
	return grp, nil
}

// UpdateGroup rewrites the membership set to match grp.MemberIDs.
func (repo *projectRepository) UpdateGroup(ctx context.Context, grp project.Group) (project.Group, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Group{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx,
		`UPDATE project_group
		 SET name = :name, capacity = :capacity, updated_at = :updated_at
		 WHERE id = :id`,
		grp,
	)
	if err != nil {
		return project.Group{}, errors.Wrap(err, "updating group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return project.Group{}, project.ErrGroupNotFound
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM project_group_member WHERE group_id = $1`, grp.ID); err != nil {
		return project.Group{}, errors.Wrap(err, "clearing group members")
	}
	for _, accountID := range grp.MemberIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO project_group_member (group_id, account_id) VALUES ($1, $2)`,
			grp.ID, accountID); err != nil {
			return project.Group{}, errors.Wrap(err, "inserting group member")
		}
	}

	if err = tx.Commit(); err != nil {
		return project.Group{}, errors.Wrap(err, "committing tx")
	}
	return grp, nil
}

func (repo *projectRepository) DeleteGroupsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM project_group WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting groups")
}

func (repo *projectRepository) loadMembers(ctx context.Context, grp *project.Group) error {
	members := make([]string, 0)
	err := repo.db.SelectContext(ctx, &members,
		`SELECT account_id FROM project_group_member WHERE group_id = $1`, grp.ID)
	if err != nil {
		return errors.Wrap(err, "loading group members")
	}
	grp.MemberIDs = members
	return nil
}
