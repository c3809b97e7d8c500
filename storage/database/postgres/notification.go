package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, account_id, title, body, read, created_at`

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO notification (`+notificationColumns+`)
		 VALUES (:id, :account_id, :title, :body, :read, :created_at)`,
		n,
	)
	return n, errors.Wrap(err, "inserting notification")
}

func (repo *notificationRepository) QueryNotificationsByAccount(ctx context.Context, accountID string) ([]notification.Notification, error) {
	notifs := make([]notification.Notification, 0)
	err := repo.db.SelectContext(ctx, &notifs,
		`SELECT `+notificationColumns+` FROM notification WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID)
	return notifs, errors.Wrap(err, "querying notifications")
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	var n notification.Notification
	err := repo.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notification WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, errors.Wrap(err, "getting notification by ID")
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE notification SET title = :title, body = :body, read = :read WHERE id = :id`, n)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, accountID string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE notification SET read = TRUE WHERE account_id = $1 AND NOT read`, accountID)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM notification WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting notifications")
}
