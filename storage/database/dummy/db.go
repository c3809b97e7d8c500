package dummydb

import (
	"sync"

	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/core/project"
)

type (
	DB struct {
		account      *accountTable
		course       *courseTable
		theme        *themeTable
		group        *groupTable
		notification *notificationTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*account.Account
		// firstAdminClaimed backs the one-time bootstrap slot
		firstAdminClaimed bool
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	themeTable struct {
		sync.RWMutex
		table map[string]*project.Theme
	}

	groupTable struct {
		sync.RWMutex
		table map[string]*project.Group
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		account:      &accountTable{table: make(map[string]*account.Account)},
		course:       &courseTable{table: make(map[string]*course.Course)},
		theme:        &themeTable{table: make(map[string]*project.Theme)},
		group:        &groupTable{table: make(map[string]*project.Group)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
