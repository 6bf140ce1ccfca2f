package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/mainino/core/notification"
)

type notificationRepository struct {
	notifications *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{notifications: db.notifications}
}

func (repo *notificationRepository) ListForRecipients(ctx context.Context, recipientIDs []string) ([]notification.Notification, []notification.ReadState, error) {
	repo.notifications.RLock()
	defer repo.notifications.RUnlock()

	var notifs []notification.Notification
	var states []notification.ReadState
	for id, n := range repo.notifications.rows {
		inScope := repo.statesFor(id, recipientIDs)
		if len(inScope) == 0 {
			continue
		}
		notifs = append(notifs, *n)
		states = append(states, inScope...)
	}
	return notifs, states, nil
}

func (repo *notificationRepository) GetForRecipients(ctx context.Context, id string, recipientIDs []string) (notification.Notification, []notification.ReadState, error) {
	repo.notifications.RLock()
	defer repo.notifications.RUnlock()

	n, ok := repo.notifications.rows[id]
	if !ok {
		return notification.Notification{}, nil, notification.ErrNotFound
	}
	states := repo.statesFor(id, recipientIDs)
	if len(states) == 0 {
		// exists but not addressed to this scope
		return notification.Notification{}, nil, notification.ErrNotFound
	}
	return *n, states, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string, recipientIDs []string, at time.Time) (int, error) {
	repo.notifications.Lock()
	defer repo.notifications.Unlock()

	var changed int
	for _, st := range repo.notifications.states[id] {
		if !contains(recipientIDs, st.RecipientID) || st.Read {
			continue
		}
		st.Read = true
		st.UpdatedAt = at
		changed++
	}
	return changed, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientIDs []string, at time.Time) (int, error) {
	repo.notifications.Lock()
	defer repo.notifications.Unlock()

	var changed int
	for _, byRecipient := range repo.notifications.states {
		for _, st := range byRecipient {
			if !contains(recipientIDs, st.RecipientID) || st.Read {
				continue
			}
			st.Read = true
			st.UpdatedAt = at
			changed++
		}
	}
	return changed, nil
}

func (repo *notificationRepository) CountUnreadForRecipients(ctx context.Context, recipientIDs []string) (int, error) {
	repo.notifications.RLock()
	defer repo.notifications.RUnlock()

	var count int
	for id := range repo.notifications.rows {
		for _, st := range repo.statesFor(id, recipientIDs) {
			if !st.Read {
				count++ // distinct notifications, not pairs
				break
			}
		}
	}
	return count, nil
}

func (repo *notificationRepository) Create(ctx context.Context, n notification.Notification, recipientIDs []string) (notification.Notification, error) {
	repo.notifications.Lock()
	defer repo.notifications.Unlock()

	repo.notifications.rows[n.ID] = &n
	byRecipient := make(map[string]*notification.ReadState, len(recipientIDs))
	for _, rid := range recipientIDs {
		byRecipient[rid] = &notification.ReadState{
			NotificationID: n.ID,
			RecipientID:    rid,
			UpdatedAt:      n.CreatedAt,
		}
	}
	repo.notifications.states[n.ID] = byRecipient
	return n, nil
}

// statesFor copies the in-scope pairs of one notification; callers hold the lock.
func (repo *notificationRepository) statesFor(id string, recipientIDs []string) []notification.ReadState {
	var out []notification.ReadState
	for _, st := range repo.notifications.states[id] {
		if contains(recipientIDs, st.RecipientID) {
			out = append(out, *st)
		}
	}
	return out
}
