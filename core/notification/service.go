package notification

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("notification not found")

const lockStripes = 64

type (
	Repository interface {
		// ListForRecipients returns notifications having at least one read
		// state pair for the given recipients, along with all such pairs.
		ListForRecipients(ctx context.Context, recipientIDs []string) ([]Notification, []ReadState, error)
		GetForRecipients(ctx context.Context, id string, recipientIDs []string) (Notification, []ReadState, error)
		// MarkRead flips the unread pairs of one notification for the given
		// recipients. It reports how many pairs changed.
		MarkRead(ctx context.Context, id string, recipientIDs []string, at time.Time) (int, error)
		// MarkAllRead flips every unread pair for the given recipients in one
		// conditional update.
		MarkAllRead(ctx context.Context, recipientIDs []string, at time.Time) (int, error)
		CountUnreadForRecipients(ctx context.Context, recipientIDs []string) (int, error)
		Create(ctx context.Context, n Notification, recipientIDs []string) (Notification, error)
	}

	// InvalidateFunc is called after a read-state transition so cached
	// per-recipient counters can be dropped.
	InvalidateFunc func(ctx context.Context, recipientIDs []string)

	Service struct {
		repo       Repository
		invalidate InvalidateFunc

		// stripe locks serialize read-state transitions per recipient so a
		// mark-all-read racing a mark-read settles on a consistent state.
		locks [lockStripes]sync.Mutex
	}
)

func NewService(repo Repository, invalidate InvalidateFunc) *Service {
	return &Service{repo: repo, invalidate: invalidate}
}

// ListFor returns notifications visible to the given recipient scope, newest
// first, optionally narrowed to one related-entity type. A notification is
// read only once every in-scope pair is read.
func (svc *Service) ListFor(ctx context.Context, recipientIDs []string, related RelatedType) ([]Notification, error) {
	if len(recipientIDs) == 0 {
		return []Notification{}, nil
	}
	notifs, states, err := svc.repo.ListForRecipients(ctx, recipientIDs)
	if err != nil {
		return nil, err
	}
	if related != "" {
		filtered := notifs[:0]
		for _, n := range notifs {
			if n.RelatedTo.Type == related {
				filtered = append(filtered, n)
			}
		}
		notifs = filtered
	}
	applyReadView(notifs, states)
	sort.SliceStable(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (svc *Service) GetFor(ctx context.Context, id string, recipientIDs []string) (Notification, error) {
	notif, states, err := svc.repo.GetForRecipients(ctx, id, recipientIDs)
	if err != nil {
		return Notification{}, err
	}
	view := []Notification{notif}
	applyReadView(view, states)
	return view[0], nil
}

// MarkRead marks one notification read for every in-scope recipient pair.
// Marking an already-read notification is a no-op, not an error.
func (svc *Service) MarkRead(ctx context.Context, id string, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return ErrNotFound
	}
	svc.lockRecipients(recipientIDs)
	defer svc.unlockRecipients(recipientIDs)

	if _, _, err := svc.repo.GetForRecipients(ctx, id, recipientIDs); err != nil {
		return err
	}
	changed, err := svc.repo.MarkRead(ctx, id, recipientIDs, time.Now().UTC())
	if err != nil {
		return err
	}
	if changed > 0 && svc.invalidate != nil {
		svc.invalidate(ctx, recipientIDs)
	}
	return nil
}

// MarkAllRead marks every unread in-scope pair read and returns the number of
// pairs that changed. Concurrent calls are serialized per recipient; the
// store-side conditional update keeps the operation idempotent regardless.
func (svc *Service) MarkAllRead(ctx context.Context, recipientIDs []string) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	svc.lockRecipients(recipientIDs)
	defer svc.unlockRecipients(recipientIDs)

	changed, err := svc.repo.MarkAllRead(ctx, recipientIDs, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if changed > 0 && svc.invalidate != nil {
		svc.invalidate(ctx, recipientIDs)
	}
	return changed, nil
}

// CountUnreadFor counts distinct notifications with at least one unread
// in-scope pair. Siblings sharing a notification count it once.
func (svc *Service) CountUnreadFor(ctx context.Context, recipientIDs []string) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	return svc.repo.CountUnreadForRecipients(ctx, recipientIDs)
}

func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	now := time.Now().UTC()
	notif := Notification{
		ID:    uuid.New().String(),
		Type:  nn.Type,
		Title: nn.Title,
		Body:  nn.Body,
		RelatedTo: RelatedTo{
			Type:        nn.RelatedType,
			StudentID:   nn.RelatedStudentID,
			StudentName: nn.RelatedStudentName,
		},
		CreatedAt: now,
	}
	created, err := svc.repo.Create(ctx, notif, dedupe(nn.RecipientIDs))
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	if svc.invalidate != nil {
		svc.invalidate(ctx, nn.RecipientIDs)
	}
	return created, nil
}

// applyReadView sets each notification's Read flag to the conjunction of its
// in-scope pair states.
func applyReadView(notifs []Notification, states []ReadState) {
	read := make(map[string]bool, len(notifs))
	for _, st := range states {
		if seen, ok := read[st.NotificationID]; !ok {
			read[st.NotificationID] = st.Read
		} else {
			read[st.NotificationID] = seen && st.Read
		}
	}
	for i := range notifs {
		notifs[i].Read = read[notifs[i].ID]
	}
}

// lockRecipients acquires the stripe locks for all recipients in a stable
// order to avoid lock-order inversions between overlapping scopes.
func (svc *Service) lockRecipients(recipientIDs []string) {
	for _, idx := range stripesFor(recipientIDs) {
		svc.locks[idx].Lock()
	}
}

func (svc *Service) unlockRecipients(recipientIDs []string) {
	stripes := stripesFor(recipientIDs)
	for i := len(stripes) - 1; i >= 0; i-- {
		svc.locks[stripes[i]].Unlock()
	}
}

func stripesFor(recipientIDs []string) []int {
	seen := make(map[int]struct{}, len(recipientIDs))
	for _, id := range recipientIDs {
		h := fnv.New32a()
		h.Write([]byte(id))
		seen[int(h.Sum32()%lockStripes)] = struct{}{}
	}
	stripes := make([]int, 0, len(seen))
	for s := range seen {
		stripes = append(stripes, s)
	}
	sort.Ints(stripes)
	return stripes
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
