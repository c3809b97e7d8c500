package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Notification struct {
		ID        string    `json:"id" db:"id"`
		AccountID string    `json:"account_id" db:"account_id"`
		Title     string    `json:"title" db:"title"`
		Body      string    `json:"body" db:"body"`
		Read      bool      `json:"read" db:"read"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryNotificationsByAccount(ctx context.Context, accountID string) ([]Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		MarkAllNotificationsRead(ctx context.Context, accountID string) error
		DeleteNotificationsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Notify(ctx context.Context, accountID, title, body string) (Notification, error)
		QueryByAccount(ctx context.Context, accountID string) ([]Notification, error)
		GetByID(ctx context.Context, id string) (Notification, error)
		MarkRead(ctx context.Context, id string) (Notification, error)
		MarkAllRead(ctx context.Context, accountID string) error
		Delete(ctx context.Context, ids ...string) error
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

func (svc *service) Notify(ctx context.Context, accountID, title, body string) (Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Title:     core.CleanString(title),
		Body:      core.CleanString(body),
		CreatedAt: time.Now().UTC(),
	}
	n, err := svc.repo.CreateNotification(ctx, n)
	return n, errors.Wrap(err, "creating notification")
}

func (svc *service) QueryByAccount(ctx context.Context, accountID string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByAccount(ctx, accountID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotificationByID(ctx, id)
}

func (svc *service) MarkRead(ctx context.Context, id string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	n, err = svc.repo.UpdateNotification(ctx, n)
	return n, errors.Wrap(err, "updating notification")
}

func (svc *service) MarkAllRead(ctx context.Context, accountID string) error {
	return svc.repo.MarkAllNotificationsRead(ctx, accountID)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteNotificationsByID(ctx, ids...)
}
