// Package inmemdb is a mutex-guarded in-memory store used by tests
// and local development. It honors the same contracts as the postgres repos.
package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/payment"
	"github.com/trezcool/mainino/core/people"
)

type (
	DB struct {
		parents       *table[people.Parent]
		students      *table[people.Student]
		teachers      *table[people.Teacher]
		groups        *table[group.Group]
		enrollments   *enrollmentTable
		overrides     *overrideTable
		attendance    *table[attendance.Record]
		payments      *table[payment.Payment]
		notifications *notificationTable
	}

	table[T any] struct {
		sync.RWMutex
		rows map[string]*T
	}

	enrollmentTable struct {
		sync.RWMutex
		// group id -> student ids
		rows map[string]map[string]struct{}
	}

	overrideTable struct {
		sync.RWMutex
		// group id + "|" + date -> override
		rows map[string]group.Override
	}

	notificationTable struct {
		sync.RWMutex
		rows   map[string]*notification.Notification
		states map[string]map[string]*notification.ReadState // notification id -> recipient id -> state
	}
)

func Open() (*DB, error) {
	db := &DB{
		parents:       &table[people.Parent]{rows: make(map[string]*people.Parent)},
		students:      &table[people.Student]{rows: make(map[string]*people.Student)},
		teachers:      &table[people.Teacher]{rows: make(map[string]*people.Teacher)},
		groups:        &table[group.Group]{rows: make(map[string]*group.Group)},
		enrollments:   &enrollmentTable{rows: make(map[string]map[string]struct{})},
		overrides:     &overrideTable{rows: make(map[string]group.Override)},
		attendance:    &table[attendance.Record]{rows: make(map[string]*attendance.Record)},
		payments:      &table[payment.Payment]{rows: make(map[string]*payment.Payment)},
		notifications: &notificationTable{rows: make(map[string]*notification.Notification), states: make(map[string]map[string]*notification.ReadState)},
	}
	return db, nil
}

func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, *row)
	}
	return out
}

func overrideKey(groupID string, date time.Time) string {
	return groupID + "|" + date.Format("2006-01-02")
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
