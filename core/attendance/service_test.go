package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T) *attendance.Service {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewAttendanceRepository(db)
	svc := attendance.NewService(repo)

	seed := []attendance.Record{
		{ID: "a1", StudentID: "s1", Date: day(5), Status: attendance.StatusPresent,
			Group: attendance.GroupInfo{ID: "g1"}, Session: attendance.SessionInfo{StartTime: "10:00"}},
		{ID: "a2", StudentID: "s1", Date: day(5), Status: attendance.StatusLate,
			Group: attendance.GroupInfo{ID: "g2"}, Session: attendance.SessionInfo{StartTime: "14:00"}},
		{ID: "a3", StudentID: "s1", Date: day(12), Status: attendance.StatusAbsent,
			Group: attendance.GroupInfo{ID: "g1"}, Session: attendance.SessionInfo{StartTime: "10:00"}},
		{ID: "a4", StudentID: "s2", Date: day(8), Status: attendance.StatusPresent,
			Group: attendance.GroupInfo{ID: "g1"}, Session: attendance.SessionInfo{StartTime: "10:00"}},
	}
	for _, rec := range seed {
		_, err = svc.Record(context.Background(), rec)
		require.NoError(t, err)
	}
	return svc
}

func Test_Service_For(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	t.Run("history is newest first, later start time first on ties", func(t *testing.T) {
		recs, err := svc.For(ctx, []string{"s1"}, attendance.DateRange{})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, day(12), recs[0].Date)
		assert.Equal(t, "14:00", recs[1].Session.StartTime) // same day as recs[2]
		assert.Equal(t, "10:00", recs[2].Session.StartTime)
	})

	t.Run("range bounds are inclusive", func(t *testing.T) {
		recs, err := svc.For(ctx, []string{"s1", "s2"}, attendance.DateRange{From: day(5), To: day(8)})
		require.NoError(t, err)
		assert.Len(t, recs, 3)
	})

	t.Run("no subjects means no history", func(t *testing.T) {
		recs, err := svc.For(ctx, nil, attendance.DateRange{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func Test_Service_SummaryFor(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	sum, err := svc.SummaryFor(ctx, []string{"s1"}, attendance.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, attendance.Summary{Present: 1, Absent: 1, Late: 1}, sum)

	sum, err = svc.SummaryFor(ctx, []string{"s1"}, attendance.DateRange{From: day(10)})
	require.NoError(t, err)
	assert.Equal(t, attendance.Summary{Absent: 1}, sum)
}

func Test_Service_CountFor(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	count, err := svc.CountFor(ctx, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = svc.CountFor(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Service_Record_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	// re-recording the same (student, group, date, start time) updates in place
	_, err := svc.Record(ctx, attendance.Record{
		StudentID: "s1", Date: day(5), Status: attendance.StatusAbsent,
		Group:   attendance.GroupInfo{ID: "g1", Status: group.StatusActive},
		Session: attendance.SessionInfo{StartTime: "10:00"},
	})
	require.NoError(t, err)

	count, err := svc.CountFor(ctx, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sum, err := svc.SummaryFor(ctx, []string{"s1"}, attendance.DateRange{To: day(6)})
	require.NoError(t, err)
	assert.Equal(t, attendance.Summary{Absent: 1, Late: 1}, sum)
}
