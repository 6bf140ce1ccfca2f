package notification_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mainino/core/notification"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"
)

type invalidations struct {
	mu    sync.Mutex
	calls [][]string
}

func (inv *invalidations) fn(ctx context.Context, recipientIDs []string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.calls = append(inv.calls, recipientIDs)
}

func (inv *invalidations) count() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.calls)
}

func setup(t *testing.T) (*notification.Service, *invalidations) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	inv := &invalidations{}
	return notification.NewService(inmemdb.NewNotificationRepository(db), inv.fn), inv
}

func notify(t *testing.T, svc *notification.Service, title string, recipients ...string) notification.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), notification.NewNotification{
		Type:         notification.TypeInfo,
		Title:        title,
		Body:         "body",
		RelatedType:  notification.RelatedGeneral,
		RecipientIDs: recipients,
	})
	require.NoError(t, err)
	return n
}

func Test_Service_ReadView(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	// one notification to the parent and both children, one to a single child
	shared := notify(t, svc, "School closed Friday", "p1", "s1", "s2")
	solo := notify(t, svc, "Homework reminder", "s1")

	t.Run("scope is the union of caller and subjects", func(t *testing.T) {
		notifs, err := svc.ListFor(ctx, []string{"p1", "s1", "s2"}, "")
		require.NoError(t, err)
		assert.Len(t, notifs, 2)

		// s2 only sees the shared one
		notifs, err = svc.ListFor(ctx, []string{"s2"}, "")
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, shared.ID, notifs[0].ID)
	})

	t.Run("read is the conjunction of in-scope pairs", func(t *testing.T) {
		// only s1's pair read: the parent's scope still shows unread
		require.NoError(t, svc.MarkRead(ctx, shared.ID, []string{"s1"}))

		got, err := svc.GetFor(ctx, shared.ID, []string{"s1"})
		require.NoError(t, err)
		assert.True(t, got.Read)

		got, err = svc.GetFor(ctx, shared.ID, []string{"p1", "s1", "s2"})
		require.NoError(t, err)
		assert.False(t, got.Read)
	})

	t.Run("out of scope lookups are not found", func(t *testing.T) {
		_, err := svc.GetFor(ctx, solo.ID, []string{"s2"})
		assert.Equal(t, notification.ErrNotFound, err)
		err = svc.MarkRead(ctx, solo.ID, []string{"s2"})
		assert.Equal(t, notification.ErrNotFound, err)
	})

	t.Run("related type filter narrows the list", func(t *testing.T) {
		pmt, err := svc.Create(ctx, notification.NewNotification{
			Type:             notification.TypeWarning,
			Title:            "Tuition due",
			Body:             "body",
			RelatedType:      notification.RelatedPayment,
			RelatedStudentID: "s1",
			RecipientIDs:     []string{"s1"},
		})
		require.NoError(t, err)

		notifs, err := svc.ListFor(ctx, []string{"s1"}, notification.RelatedPayment)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, pmt.ID, notifs[0].ID)
		assert.Equal(t, "s1", notifs[0].RelatedTo.StudentID)
	})

	t.Run("empty scope sees nothing", func(t *testing.T) {
		notifs, err := svc.ListFor(ctx, nil, "")
		require.NoError(t, err)
		assert.Empty(t, notifs)
	})
}

func Test_Service_CountUnreadFor(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	shared := notify(t, svc, "School closed Friday", "s1", "s2")
	notify(t, svc, "Homework reminder", "s1")

	// the shared notification counts once for the family scope
	count, err := svc.CountUnreadFor(ctx, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// a single read pair keeps the notification unread for the family
	require.NoError(t, svc.MarkRead(ctx, shared.ID, []string{"s1"}))
	count, err = svc.CountUnreadFor(ctx, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.CountUnreadFor(ctx, []string{"s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.CountUnreadFor(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Service_MarkRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, inv := setup(t)

	n := notify(t, svc, "School closed Friday", "s1")
	created := inv.count()

	require.NoError(t, svc.MarkRead(ctx, n.ID, []string{"s1"}))
	assert.Equal(t, created+1, inv.count())

	// marking again is a no-op and does not invalidate caches
	require.NoError(t, svc.MarkRead(ctx, n.ID, []string{"s1"}))
	assert.Equal(t, created+1, inv.count())
}

func Test_Service_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	notify(t, svc, "one", "p1", "s1")
	notify(t, svc, "two", "s1")
	notify(t, svc, "three", "s2") // out of scope

	changed, err := svc.MarkAllRead(ctx, []string{"p1", "s1"})
	require.NoError(t, err)
	assert.Equal(t, 3, changed) // two pairs for "one", one for "two"

	count, err := svc.CountUnreadFor(ctx, []string{"p1", "s1"})
	require.NoError(t, err)
	assert.Zero(t, count)

	// s2's pair is untouched
	count, err = svc.CountUnreadFor(ctx, []string{"s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	changed, err = svc.MarkAllRead(ctx, []string{"p1", "s1"})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func Test_Service_MarkAllRead_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	for i := 0; i < 20; i++ {
		notify(t, svc, "notice", "p1", "s1")
	}

	var wg sync.WaitGroup
	total := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := svc.MarkAllRead(ctx, []string{"p1", "s1"})
			assert.NoError(t, err)
			total <- changed
		}()
	}
	wg.Wait()
	close(total)

	// each pair flips exactly once across all racing calls
	var sum int
	for n := range total {
		sum += n
	}
	assert.Equal(t, 40, sum)

	count, err := svc.CountUnreadFor(ctx, []string{"p1", "s1"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Service_Create_DedupesRecipients(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	n := notify(t, svc, "notice", "s1", "s1", "s1")
	require.NoError(t, svc.MarkRead(ctx, n.ID, []string{"s1"}))

	got, err := svc.GetFor(ctx, n.ID, []string{"s1"})
	require.NoError(t, err)
	assert.True(t, got.Read)
}
