package dummydb

import (
	"context"
	"sort"

	"github.com/globalitacademy/yscip/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryNotificationsByAccount(_ context.Context, accountID string) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.table {
		if n.AccountID == accountID {
			notifs = append(notifs, *n)
		}
	}
	// newest first
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) GetNotificationByID(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[n.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(_ context.Context, accountID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range repo.db.table {
		if n.AccountID == accountID {
			n.Read = true
		}
	}
	return nil
}

func (repo *notificationRepository) DeleteNotificationsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
