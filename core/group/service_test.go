package group_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/people"
	inmemdb "github.com/trezcool/mainino/storage/database/inmem"
)

// 2026-01-07 is a Wednesday.
var wednesday = time.Date(2026, 1, 7, 9, 30, 0, 0, time.UTC)

type groupFixture struct {
	db   *inmemdb.DB
	repo group.Repository
	svc  *group.Service
}

func setup(t *testing.T) *groupFixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewGroupRepository(db)
	return &groupFixture{db: db, repo: repo, svc: group.NewService(repo, nil)}
}

func (f *groupFixture) addGroup(t *testing.T, name string, slots ...group.TimeSlot) group.Group {
	t.Helper()
	g, err := f.svc.Create(context.Background(), group.NewGroup{
		Name:      name,
		Subject:   "Math",
		Level:     "S1",
		Room:      "A1",
		TimeSlots: slots,
		TeacherID: "t1",
	})
	require.NoError(t, err)
	return g
}

func Test_Service_UpcomingSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("weekly slot repeats within the horizon", func(t *testing.T) {
		f := setup(t)
		g := f.addGroup(t, "Algebra", group.TimeSlot{Day: "Monday", StartTime: "10:00", EndTime: "11:00"})

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g.ID}, wednesday, 14)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), sessions[0].Date)
		assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), sessions[1].Date)
		assert.Equal(t, "10:00", sessions[0].StartTime)
		assert.Equal(t, "Algebra", sessions[0].GroupName)
	})

	t.Run("same weekday as the query start is included", func(t *testing.T) {
		f := setup(t)
		g := f.addGroup(t, "Algebra", group.TimeSlot{Day: "Wednesday", StartTime: "08:00", EndTime: "09:00"})

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g.ID}, wednesday, 7)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), sessions[0].Date)
		assert.Equal(t, time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), sessions[1].Date)
	})

	t.Run("sessions are ordered by date then start time", func(t *testing.T) {
		f := setup(t)
		g1 := f.addGroup(t, "Algebra", group.TimeSlot{Day: "Friday", StartTime: "14:00", EndTime: "15:00"})
		g2 := f.addGroup(t, "Physics",
			group.TimeSlot{Day: "Thursday", StartTime: "09:00", EndTime: "10:00"},
			group.TimeSlot{Day: "Friday", StartTime: "08:00", EndTime: "09:00"},
		)

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g1.ID, g2.ID}, wednesday, 3)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		assert.Equal(t, "Physics", sessions[0].GroupName) // Thursday
		assert.Equal(t, "08:00", sessions[1].StartTime)   // Friday, earliest first
		assert.Equal(t, "14:00", sessions[2].StartTime)
	})

	t.Run("malformed slots are skipped, valid ones kept", func(t *testing.T) {
		f := setup(t)
		g, err := f.repo.CreateGroup(ctx, group.Group{
			ID:   "g1",
			Name: "Algebra",
			TimeSlots: []group.TimeSlot{
				{Day: "Moonday", StartTime: "10:00", EndTime: "11:00"}, // unknown day
				{Day: "Monday", StartTime: "11:00", EndTime: "10:00"},  // inverted
				{Day: "Monday", StartTime: "25:00", EndTime: "26:00"},  // not wall-clock
				{Day: "Tuesday", StartTime: "10:00", EndTime: "11:00"},
			},
			Status: group.StatusActive,
		})
		require.NoError(t, err)

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g.ID}, wednesday, 7)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC), sessions[0].Date)
	})

	t.Run("overlapping slots on the same day yield one session", func(t *testing.T) {
		f := setup(t)
		g := f.addGroup(t, "Algebra",
			group.TimeSlot{Day: "Monday", StartTime: "10:00", EndTime: "12:00"},
			group.TimeSlot{Day: "Monday", StartTime: "11:00", EndTime: "13:00"}, // overlaps the first
			group.TimeSlot{Day: "Monday", StartTime: "12:00", EndTime: "13:00"}, // back to back is fine
		)

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g.ID}, wednesday, 7)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "10:00", sessions[0].StartTime)
		assert.Equal(t, "12:00", sessions[1].StartTime)
	})

	t.Run("override replaces times and room for its date only", func(t *testing.T) {
		f := setup(t)
		g := f.addGroup(t, "Algebra", group.TimeSlot{Day: "Monday", StartTime: "10:00", EndTime: "11:00"})

		repo := f.repo.(interface {
			SetOverride(ctx context.Context, ovr group.Override) error
		})
		require.NoError(t, repo.SetOverride(ctx, group.Override{
			GroupID:   g.ID,
			Date:      time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			StartTime: "15:00",
			EndTime:   "16:30",
			Room:      "B2",
		}))

		sessions, err := f.svc.UpcomingSessions(ctx, []string{g.ID}, wednesday, 14)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "15:00", sessions[0].StartTime)
		assert.Equal(t, "16:30", sessions[0].EndTime)
		assert.Equal(t, "B2", sessions[0].Room)
		// next week inherits the slot defaults
		assert.Equal(t, "10:00", sessions[1].StartTime)
		assert.Equal(t, "A1", sessions[1].Room)
	})

	t.Run("negative horizon is a validation error", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.UpcomingSessions(ctx, []string{"g1"}, wednesday, -1)
		require.Error(t, err)
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok)
	})

	t.Run("no groups means no sessions", func(t *testing.T) {
		f := setup(t)
		sessions, err := f.svc.UpcomingSessions(ctx, nil, wednesday, 7)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})
}

func Test_Service_CoursesFor(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	pplRepo := inmemdb.NewPeopleRepository(f.db)
	_, err := pplRepo.CreateTeacher(ctx, people.Teacher{ID: "t1", Name: "Ada", Surname: "Lovelace", IsActive: true})
	require.NoError(t, err)
	_, err = pplRepo.CreateStudent(ctx, people.Student{ID: "s1", Name: "Sam", Surname: "Doe"})
	require.NoError(t, err)
	_, err = pplRepo.CreateStudent(ctx, people.Student{ID: "s2", Name: "Kim", Surname: "Doe"})
	require.NoError(t, err)

	active := f.addGroup(t, "Algebra", group.TimeSlot{Day: "Monday", StartTime: "10:00", EndTime: "11:00"})
	archived := f.addGroup(t, "History", group.TimeSlot{Day: "Tuesday", StartTime: "10:00", EndTime: "11:00"})
	require.NoError(t, f.svc.Archive(ctx, archived.ID))

	for _, sid := range []string{"s1", "s2"} {
		require.NoError(t, f.svc.Enroll(ctx, active.ID, sid))
		require.NoError(t, f.svc.Enroll(ctx, archived.ID, sid))
	}

	t.Run("one row per enrollment, archived excluded", func(t *testing.T) {
		courses, err := f.svc.CoursesFor(ctx, []string{"s1", "s2"}, true /* onlyActive */)
		require.NoError(t, err)
		require.Len(t, courses, 2) // two siblings in the same active group
		assert.Equal(t, "Ada Lovelace", courses[0].Teacher.Name)
	})

	t.Run("archived included when not restricted", func(t *testing.T) {
		courses, err := f.svc.CoursesFor(ctx, []string{"s1"}, false)
		require.NoError(t, err)
		assert.Len(t, courses, 2)
	})

	t.Run("no subjects means no courses", func(t *testing.T) {
		courses, err := f.svc.CoursesFor(ctx, nil, true)
		require.NoError(t, err)
		assert.Empty(t, courses)
	})
}
