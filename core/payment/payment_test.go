package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mainino/core/payment"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"
)

func Test_Service_For(t *testing.T) {
	ctx := context.Background()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	svc := payment.NewService(inmemdb.NewPaymentRepository(db))

	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	for _, p := range []payment.Payment{
		{ID: "p1", StudentID: "s1", Amount: 100, Date: day(5), Status: payment.StatusPaid},
		{ID: "p2", StudentID: "s1", Amount: 100, Date: day(20), Status: payment.StatusPending},
		{ID: "p3", StudentID: "s2", Amount: 50, Date: day(12), Status: payment.StatusOverdue},
	} {
		_, err = svc.Record(ctx, p)
		require.NoError(t, err)
	}

	t.Run("family history is newest first", func(t *testing.T) {
		pmts, err := svc.For(ctx, []string{"s1", "s2"})
		require.NoError(t, err)
		require.Len(t, pmts, 3)
		assert.Equal(t, "p2", pmts[0].ID)
		assert.Equal(t, "p3", pmts[1].ID)
		assert.Equal(t, "p1", pmts[2].ID)
	})

	t.Run("scoped to the given students", func(t *testing.T) {
		pmts, err := svc.For(ctx, []string{"s2"})
		require.NoError(t, err)
		require.Len(t, pmts, 1)
		assert.Equal(t, payment.StatusOverdue, pmts[0].Status)
	})

	t.Run("no subjects means no history", func(t *testing.T) {
		pmts, err := svc.For(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, pmts)
	})
}
