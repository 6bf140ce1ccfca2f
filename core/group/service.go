package group

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
)

var ErrNotFound = errors.New("group not found")

type (
	// Repository is the storage contract for groups, enrollments and
	// session overrides.
	Repository interface {
		CreateGroup(ctx context.Context, g Group) (Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		// GroupsByID returns the given groups in one query; missing ids are skipped.
		GroupsByID(ctx context.Context, ids []string) ([]Group, error)
		QueryAllGroups(ctx context.Context) ([]Group, error)
		UpdateGroupStatus(ctx context.Context, id string, status Status) error

		Enroll(ctx context.Context, groupID, studentID string) error
		// GroupsForStudents returns one Course row per (student, group)
		// enrollment, joined with teacher info, in one query.
		GroupsForStudents(ctx context.Context, studentIDs []string, onlyActive bool) ([]Course, error)

		// SessionOverrides returns override rows for the given groups within
		// [from, to], in one query.
		SessionOverrides(ctx context.Context, groupIDs []string, from, to time.Time) ([]Override, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	now := time.Now().UTC()
	g := Group{
		ID:        uuid.New().String(),
		Name:      core.CleanString(ng.Name),
		Subject:   core.CleanString(ng.Subject),
		Level:     core.CleanString(ng.Level),
		Room:      core.CleanString(ng.Room),
		TimeSlots: ng.TimeSlots,
		TeacherID: ng.TeacherID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateGroup(ctx, g)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroupByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryAllGroups(ctx)
}

func (svc *Service) Archive(ctx context.Context, id string) error {
	return svc.repo.UpdateGroupStatus(ctx, id, StatusArchived)
}

func (svc *Service) Enroll(ctx context.Context, groupID, studentID string) error {
	return svc.repo.Enroll(ctx, groupID, studentID)
}

// CoursesFor returns the course rows for the given subjects in one batched
// query; one row per (student, group) enrollment.
func (svc *Service) CoursesFor(ctx context.Context, subjectIDs []string, onlyActive bool) ([]Course, error) {
	if len(subjectIDs) == 0 {
		return []Course{}, nil
	}
	return svc.repo.GroupsForStudents(ctx, subjectIDs, onlyActive)
}

// UpcomingSessions expands the given groups' weekly time slots into concrete
// occurrences within [from's date, from's date + horizonDays], ordered by
// (date, start time) ascending.
//
// Expansion is per slot: a malformed or overlapping slot yields zero
// occurrences and is logged, never failing the whole call.
func (svc *Service) UpcomingSessions(ctx context.Context, groupIDs []string, from time.Time, horizonDays int) ([]Session, error) {
	if horizonDays < 0 {
		return nil, core.NewValidationError(errors.New("horizon must not be negative"))
	}
	if len(groupIDs) == 0 {
		return []Session{}, nil
	}

	groups, err := svc.repo.GroupsByID(ctx, groupIDs)
	if err != nil {
		return nil, errors.Wrap(err, "fetching groups")
	}

	fromDate := truncateToDay(from.UTC())
	limit := fromDate.AddDate(0, 0, horizonDays)

	overrides, err := svc.repo.SessionOverrides(ctx, groupIDs, fromDate, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetching session overrides")
	}
	ovrByKey := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		ovrByKey[overrideKey(o.GroupID, o.Date)] = o
	}

	var sessions []Session
	for _, g := range groups {
		sessions = append(sessions, svc.expand(g, fromDate, limit, ovrByKey)...)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.Before(sessions[j].Date)
		}
		return sessions[i].StartTime < sessions[j].StartTime
	})
	return sessions, nil
}

// UpcomingSessionsFor expands all groups the given subjects are enrolled in.
func (svc *Service) UpcomingSessionsFor(ctx context.Context, subjectIDs []string, from time.Time, horizonDays int) ([]Session, error) {
	courses, err := svc.CoursesFor(ctx, subjectIDs, true /* onlyActive */)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(courses))
	groupIDs := make([]string, 0, len(courses))
	for _, c := range courses {
		if !seen[c.ID] {
			seen[c.ID] = true
			groupIDs = append(groupIDs, c.ID)
		}
	}
	return svc.UpcomingSessions(ctx, groupIDs, from, horizonDays)
}

func (svc *Service) expand(g Group, fromDate, limit time.Time, ovrByKey map[string]Override) []Session {
	var sessions []Session

	// slots accepted so far, per weekday, as minute intervals
	type interval struct{ start, end int }
	accepted := make(map[time.Weekday][]interval)

slots:
	for _, slot := range g.TimeSlots {
		day, ok := slot.Weekday()
		if !ok {
			svc.warn(fmt.Sprintf("group %s: skipping slot with unknown day %q", g.ID, slot.Day))
			continue
		}
		start, end, ok := slot.Minutes()
		if !ok {
			svc.warn(fmt.Sprintf("group %s: skipping malformed slot %s-%s", g.ID, slot.StartTime, slot.EndTime))
			continue
		}
		for _, iv := range accepted[day] {
			if start < iv.end && iv.start < end {
				svc.warn(fmt.Sprintf("group %s: skipping overlapping slot %s %s-%s", g.ID, slot.Day, slot.StartTime, slot.EndTime))
				continue slots
			}
		}
		accepted[day] = append(accepted[day], interval{start, end})

		// next occurrence of this weekday on or after fromDate, then weekly
		offset := (int(day) - int(fromDate.Weekday()) + 7) % 7
		for d := fromDate.AddDate(0, 0, offset); !d.After(limit); d = d.AddDate(0, 0, 7) {
			s := Session{
				GroupID:   g.ID,
				GroupName: g.Name,
				Subject:   g.Subject,
				Date:      d,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
				Room:      g.Room,
			}
			if o, ok := ovrByKey[overrideKey(g.ID, d)]; ok {
				if o.StartTime != "" {
					s.StartTime = o.StartTime
				}
				if o.EndTime != "" {
					s.EndTime = o.EndTime
				}
				if o.Room != "" {
					s.Room = o.Room
				}
			}
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (svc *Service) warn(msg string) {
	if svc.logger != nil {
		svc.logger.Warn(msg)
	}
}

func overrideKey(groupID string, date time.Time) string {
	return groupID + "|" + date.UTC().Format("2006-01-02")
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
