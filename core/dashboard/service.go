package dashboard

import (
	"context"
	"time"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/people"
)

type (
	// Stats is the portal dashboard payload. Counts are per enrollment for a
	// parent (two children in the same group count it twice) except unread
	// notifications, which count shared notifications once.
	Stats struct {
		TotalCourses        int `json:"totalCourses"`
		TotalAttendance     int `json:"totalAttendance"`
		UpcomingSessions    int `json:"upcomingSessions"`
		UnreadNotifications int `json:"unreadNotifications"`
	}

	// Cache stores computed stats per caller. A nil result with a nil error
	// means a miss.
	Cache interface {
		GetStats(ctx context.Context, callerID string) (*Stats, error)
		SetStats(ctx context.Context, callerID string, stats Stats) error
		DeleteStats(ctx context.Context, callerIDs ...string) error
	}

	Service struct {
		people  *people.Service
		groups  *group.Service
		attend  *attendance.Service
		notifs  *notification.Service
		cache   Cache
		logger  core.Logger
		horizon int
	}
)

func NewService(ppl *people.Service, grp *group.Service, att *attendance.Service, ntf *notification.Service, cache Cache, logger core.Logger, horizonDays int) *Service {
	return &Service{
		people:  ppl,
		groups:  grp,
		attend:  att,
		notifs:  ntf,
		cache:   cache,
		logger:  logger,
		horizon: horizonDays,
	}
}

// StatsFor computes the dashboard counters for the caller's subject scope.
// Cache failures degrade to a recompute, never to an error.
func (svc *Service) StatsFor(ctx context.Context, caller people.Caller) (Stats, error) {
	if svc.cache != nil {
		if cached, err := svc.cache.GetStats(ctx, caller.ID); err != nil {
			svc.warn("stats cache read failed: " + err.Error())
		} else if cached != nil {
			return *cached, nil
		}
	}

	subjects, err := svc.people.Subjects(ctx, caller)
	if err != nil {
		return Stats{}, err
	}

	stats, err := svc.compute(ctx, caller, subjects)
	if err != nil {
		return Stats{}, err
	}

	if svc.cache != nil {
		if err := svc.cache.SetStats(ctx, caller.ID, stats); err != nil {
			svc.warn("stats cache write failed: " + err.Error())
		}
	}
	return stats, nil
}

// Invalidate drops cached stats for the given recipients. Wired as the
// notification service's invalidation hook.
func (svc *Service) Invalidate(ctx context.Context, recipientIDs []string) {
	if svc.cache == nil || len(recipientIDs) == 0 {
		return
	}
	if err := svc.cache.DeleteStats(ctx, svc.withParents(ctx, recipientIDs)...); err != nil {
		svc.warn("stats cache invalidation failed: " + err.Error())
	}
}

// withParents widens the scope to each student's parent, whose unread counter
// is derived from the child's read states.
func (svc *Service) withParents(ctx context.Context, recipientIDs []string) []string {
	ids := make([]string, 0, 2*len(recipientIDs))
	seen := make(map[string]struct{}, 2*len(recipientIDs))
	for _, id := range recipientIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		s, err := svc.people.GetStudentByID(ctx, id)
		if err != nil || s.ParentID == "" {
			continue // not a student, or unresolvable; best effort
		}
		if _, ok := seen[s.ParentID]; !ok {
			seen[s.ParentID] = struct{}{}
			ids = append(ids, s.ParentID)
		}
	}
	return ids
}

func (svc *Service) compute(ctx context.Context, caller people.Caller, subjects []string) (Stats, error) {
	var stats Stats

	// Active enrollments only; archived groups are history, not courses.
	courses, err := svc.groups.CoursesFor(ctx, subjects, true)
	if err != nil {
		return Stats{}, err
	}
	stats.TotalCourses = len(courses)

	stats.TotalAttendance, err = svc.attend.CountFor(ctx, subjects)
	if err != nil {
		return Stats{}, err
	}

	sessions, err := svc.groups.UpcomingSessionsFor(ctx, subjects, time.Now().UTC(), svc.horizon)
	if err != nil {
		return Stats{}, err
	}
	perGroup := make(map[string]int)
	for _, s := range sessions {
		perGroup[s.GroupID]++
	}
	for _, c := range courses {
		stats.UpcomingSessions += perGroup[c.ID]
	}

	stats.UnreadNotifications, err = svc.notifs.CountUnreadFor(ctx, recipientScope(caller, subjects))
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// recipientScope is the caller plus its subjects, deduplicated. A student's
// scope is itself; a parent's scope is itself and its children.
func recipientScope(caller people.Caller, subjects []string) []string {
	scope := make([]string, 0, len(subjects)+1)
	seen := map[string]struct{}{caller.ID: {}}
	scope = append(scope, caller.ID)
	for _, id := range subjects {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		scope = append(scope, id)
	}
	return scope
}

func (svc *Service) warn(msg string) {
	if svc.logger != nil {
		svc.logger.Warn(msg)
	}
}
