package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/payment"
	"github.com/trezcool/mainino/core/people"
)

// registerPortalAPI mounts the parent/student read surface. Every handler
// resolves the caller's subject scope first; a parent sees the union of
// their children, a student sees themself.
func registerPortalAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := portalApi{server: s}

	pg := g.Group("/portal", jwt)
	pg.GET("/children", api.children)
	pg.GET("/courses", api.courses)
	pg.GET("/sessions", api.upcomingSessions)
	pg.GET("/attendance", api.attendanceHistory)
	pg.GET("/attendance/summary", api.attendanceSummary)
	pg.GET("/payments", api.payments)
	pg.GET("/notifications", api.notifications)
	pg.GET("/notifications/unread-count", api.unreadCount)
	pg.POST("/notifications/:id/read", api.markRead)
	pg.POST("/notifications/read-all", api.markAllRead)
	pg.GET("/stats", api.stats)
}

type portalApi struct {
	server *Server
}

// scope resolves the caller and its subject student ids, narrowed to one
// student when the student_id param is present (after an authorization check).
func (api *portalApi) scope(ctx echo.Context) (people.Caller, []string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return people.Caller{}, nil, err
	}
	caller := claims.Caller()

	reqCtx := ctx.Request().Context()
	if studentID := ctx.QueryParam("student_id"); studentID != "" {
		if err = api.server.deps.PeopleSvc.Authorize(reqCtx, caller, studentID); err != nil {
			return people.Caller{}, nil, err
		}
		return caller, []string{studentID}, nil
	}

	subjects, err := api.server.deps.PeopleSvc.Subjects(reqCtx, caller)
	if err != nil {
		return people.Caller{}, nil, err
	}
	return caller, subjects, nil
}

func (api *portalApi) recipients(caller people.Caller, subjects []string) []string {
	recipients := []string{caller.ID}
	for _, id := range subjects {
		if id != caller.ID {
			recipients = append(recipients, id)
		}
	}
	return recipients
}

func (api *portalApi) children(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent {
		return errHttpForbidden
	}

	children, err := api.server.deps.PeopleSvc.Children(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	if children == nil {
		children = []people.Student{}
	}
	return jsonData(ctx, http.StatusOK, children)
}

func (api *portalApi) courses(ctx echo.Context) error {
	_, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	courses, err := api.server.deps.GroupSvc.CoursesFor(ctx.Request().Context(), subjects, true /* onlyActive */)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []group.Course{}
	}
	return jsonData(ctx, http.StatusOK, courses)
}

func (api *portalApi) upcomingSessions(ctx echo.Context) error {
	_, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	horizon := api.server.deps.Conf.UpcomingHorizonDays
	sessions, err := api.server.deps.GroupSvc.UpcomingSessionsFor(ctx.Request().Context(), subjects, time.Now().UTC(), horizon)
	if err != nil {
		return errors.Wrap(err, "expanding upcoming sessions")
	}
	if sessions == nil {
		sessions = []group.Session{}
	}
	return jsonData(ctx, http.StatusOK, sessions)
}

func (api *portalApi) attendanceHistory(ctx echo.Context) error {
	_, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	recs, err := api.server.deps.AttendanceSvc.For(ctx.Request().Context(), subjects, rng)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return jsonData(ctx, http.StatusOK, recs)
}

func (api *portalApi) attendanceSummary(ctx echo.Context) error {
	_, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	sum, err := api.server.deps.AttendanceSvc.SummaryFor(ctx.Request().Context(), subjects, rng)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return jsonData(ctx, http.StatusOK, sum)
}

func (api *portalApi) payments(ctx echo.Context) error {
	_, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	pmts, err := api.server.deps.PaymentSvc.For(ctx.Request().Context(), subjects)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []payment.Payment{}
	}
	return jsonData(ctx, http.StatusOK, pmts)
}

func (api *portalApi) notifications(ctx echo.Context) error {
	caller, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	related := notification.RelatedType(ctx.QueryParam("type"))
	if related != "" && !related.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification type")
	}

	notifs, err := api.server.deps.NotificationSvc.ListFor(ctx.Request().Context(), api.recipients(caller, subjects), related)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return jsonData(ctx, http.StatusOK, notifs)
}

func (api *portalApi) unreadCount(ctx echo.Context) error {
	caller, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	count, err := api.server.deps.NotificationSvc.CountUnreadFor(ctx.Request().Context(), api.recipients(caller, subjects))
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return jsonData(ctx, http.StatusOK, UnreadCountResponse{Unread: count})
}

func (api *portalApi) markRead(ctx echo.Context) error {
	caller, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	if err = api.server.deps.NotificationSvc.MarkRead(ctx.Request().Context(), ctx.Param("id"), api.recipients(caller, subjects)); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *portalApi) markAllRead(ctx echo.Context) error {
	caller, subjects, err := api.scope(ctx)
	if err != nil {
		return err
	}

	changed, err := api.server.deps.NotificationSvc.MarkAllRead(ctx.Request().Context(), api.recipients(caller, subjects))
	if err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return jsonData(ctx, http.StatusOK, MarkAllReadResponse{Updated: changed})
}

func (api *portalApi) stats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	stats, err := api.server.deps.DashboardSvc.StatsFor(ctx.Request().Context(), claims.Caller())
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return jsonData(ctx, http.StatusOK, stats)
}

func bindDateRange(ctx echo.Context) (attendance.DateRange, error) {
	var rng attendance.DateRange
	if val := ctx.QueryParam("from"); val != "" {
		t, err := time.Parse(dateLayout, val)
		if err != nil {
			return rng, errHttpBadDate("from")
		}
		rng.From = t.UTC()
	}
	if val := ctx.QueryParam("to"); val != "" {
		t, err := time.Parse(dateLayout, val)
		if err != nil {
			return rng, errHttpBadDate("to")
		}
		rng.To = t.UTC()
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return rng, echo.NewHTTPError(http.StatusBadRequest, "invalid date range; from is after to")
	}
	return rng, nil
}

func errHttpBadDate(field string) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid "+field+" date; expected YYYY-MM-DD")
}

type (
	UnreadCountResponse struct {
		Unread int `json:"unread"`
	}

	MarkAllReadResponse struct {
		Updated int `json:"updated"`
	}
)
