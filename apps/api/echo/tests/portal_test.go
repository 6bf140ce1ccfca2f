package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/notification"
)

func (a *app) seedActivity(t *testing.T) (family, solo notification.Notification) {
	t.Helper()
	ctx := context.Background()

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, rec := range []attendance.Record{
		{ID: "a1", StudentID: a.kid1.ID, Group: attendance.GroupInfo{ID: a.algebra.ID},
			Date: day, Status: attendance.StatusPresent, Session: attendance.SessionInfo{StartTime: "10:00"}},
		{ID: "a2", StudentID: a.kid1.ID, Group: attendance.GroupInfo{ID: a.physics.ID},
			Date: day.AddDate(0, 0, 1), Status: attendance.StatusLate, Session: attendance.SessionInfo{StartTime: "14:00"}},
		{ID: "a3", StudentID: a.kid2.ID, Group: attendance.GroupInfo{ID: a.algebra.ID},
			Date: day, Status: attendance.StatusAbsent, Session: attendance.SessionInfo{StartTime: "10:00"}},
	} {
		_, err := a.attSvc.Record(ctx, rec)
		die(t, err)
	}

	var err error
	family, err = a.ntfSvc.Create(ctx, notification.NewNotification{
		Type: notification.TypeInfo, Title: "School closed Friday", Body: "b",
		RelatedType:  notification.RelatedGeneral,
		RecipientIDs: []string{a.parent.ID, a.kid1.ID, a.kid2.ID},
	})
	die(t, err)
	solo, err = a.ntfSvc.Create(ctx, notification.NewNotification{
		Type: notification.TypeWarning, Title: "Absence recorded", Body: "b",
		RelatedType: notification.RelatedAttendance, RelatedStudentID: a.kid1.ID,
		RecipientIDs: []string{a.kid1.ID},
	})
	die(t, err)
	return family, solo
}

func decodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshalling envelope: %v", err)
	}
	if !resp.Success {
		t.Fatalf("failed! expected success envelope; body %s", body)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("unmarshalling data: %v", err)
	}
}

func Test_portalApi_authRequired(t *testing.T) {
	a := setup(t)

	paths := []string{
		"/v1/portal/children",
		"/v1/portal/courses",
		"/v1/portal/sessions",
		"/v1/portal/attendance",
		"/v1/portal/payments",
		"/v1/portal/notifications",
		"/v1/portal/stats",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, path)
			a.server.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: errMissingToken}, rec)
		})
	}
}

func Test_portalApi_children(t *testing.T) {
	a := setup(t)

	t.Run("parent lists their children", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/children", getParentToken(t, a.parent))
		a.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var children []struct {
			ID string `json:"id"`
		}
		decodeData(t, rec.Body.Bytes(), &children)
		if len(children) != 2 {
			t.Errorf("failed! children = %d; want 2", len(children))
		}
	})

	t.Run("students have no children view", func(t *testing.T) {
		tt := httpTest{
			token:    getStudentToken(t, a.kid1),
			wantCode: http.StatusForbidden,
			wantData: errData(t, "permission denied"),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/children", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_portalApi_courses(t *testing.T) {
	a := setup(t)

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"parent sees one row per enrollment", getParentToken(t, a.parent), "/v1/portal/courses", 3},
		{"student sees own courses", getStudentToken(t, a.kid2), "/v1/portal/courses", 1},
		{"parent narrows to one child", getParentToken(t, a.parent), "/v1/portal/courses?student_id=" + a.kid2.ID, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			a.server.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
			}
			var courses []struct {
				ID        string `json:"id"`
				StudentID string `json:"student_id"`
			}
			decodeData(t, rec.Body.Bytes(), &courses)
			if len(courses) != tt.want {
				t.Errorf("failed! courses = %d; want %d", len(courses), tt.want)
			}
		})
	}

	t.Run("narrowing to a foreign student is denied", func(t *testing.T) {
		tt := httpTest{
			token:    getStudentToken(t, a.kid1),
			wantCode: http.StatusForbidden,
			wantData: errData(t, "permission denied"),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/courses?student_id="+a.kid2.ID, tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_portalApi_attendance(t *testing.T) {
	a := setup(t)
	a.seedActivity(t)

	t.Run("history is scoped and ordered newest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/attendance", getParentToken(t, a.parent))
		a.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var recs []struct {
			ID   string    `json:"id"`
			Date time.Time `json:"date"`
		}
		decodeData(t, rec.Body.Bytes(), &recs)
		if len(recs) != 3 {
			t.Fatalf("failed! records = %d; want 3", len(recs))
		}
		if recs[0].ID != "a2" {
			t.Errorf("failed! first = %s; want a2 (newest)", recs[0].ID)
		}
	})

	t.Run("summary tallies by status", func(t *testing.T) {
		tt := httpTest{
			token:    getParentToken(t, a.parent),
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]int{"present": 1, "absent": 1, "late": 1}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/attendance/summary", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("date range bounds the history", func(t *testing.T) {
		path := "/v1/portal/attendance?from=2026-01-06&to=2026-01-06"
		req, rec := newAuthRequest(http.MethodGet, path, getParentToken(t, a.parent))
		a.server.ServeHTTP(rec, req)

		var recs []struct {
			ID string `json:"id"`
		}
		decodeData(t, rec.Body.Bytes(), &recs)
		if len(recs) != 1 || recs[0].ID != "a2" {
			t.Errorf("failed! records = %v; want [a2]", recs)
		}
	})

	t.Run("a bad date is rejected", func(t *testing.T) {
		tt := httpTest{
			token:    getParentToken(t, a.parent),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "invalid from date; expected YYYY-MM-DD"),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/attendance?from=06/01/2026", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("an inverted range is rejected", func(t *testing.T) {
		tt := httpTest{
			token:    getParentToken(t, a.parent),
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "invalid date range; from is after to"),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/attendance?from=2026-01-08&to=2026-01-05", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_portalApi_notifications(t *testing.T) {
	a := setup(t)
	family, solo := a.seedActivity(t)

	parentToken := getParentToken(t, a.parent)
	kid2Token := getStudentToken(t, a.kid2)

	t.Run("family scope sees both, child scope one", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/notifications", parentToken)
		a.server.ServeHTTP(rec, req)
		var notifs []struct {
			ID   string `json:"id"`
			Read bool   `json:"read"`
		}
		decodeData(t, rec.Body.Bytes(), &notifs)
		if len(notifs) != 2 {
			t.Fatalf("failed! notifications = %d; want 2", len(notifs))
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/portal/notifications", kid2Token)
		a.server.ServeHTTP(rec, req)
		decodeData(t, rec.Body.Bytes(), &notifs)
		if len(notifs) != 1 || notifs[0].ID != family.ID {
			t.Errorf("failed! notifications = %v; want only the family one", notifs)
		}
	})

	t.Run("related type filter narrows the list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/notifications?type=attendance", parentToken)
		a.server.ServeHTTP(rec, req)
		var notifs []struct {
			ID        string `json:"id"`
			RelatedTo struct {
				Type      string `json:"type"`
				StudentID string `json:"student_id"`
			} `json:"related_to"`
		}
		decodeData(t, rec.Body.Bytes(), &notifs)
		if len(notifs) != 1 || notifs[0].ID != solo.ID || notifs[0].RelatedTo.StudentID != a.kid1.ID {
			t.Errorf("failed! notifications = %v; want only the attendance one", notifs)
		}

		tt := httpTest{
			token:    parentToken,
			wantCode: http.StatusBadRequest,
			wantData: errData(t, "invalid notification type"),
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/portal/notifications?type=gossip", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unread count is distinct per notification", func(t *testing.T) {
		tt := httpTest{
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]int{"unread": 2}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/portal/notifications/unread-count", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("marking read from a child scope keeps the family unread", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/portal/notifications/"+family.ID+"/read", kid2Token)
		a.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}

		// kid2 now sees it read
		reqG, recG := newAuthRequest(http.MethodGet, "/v1/portal/notifications", kid2Token)
		a.server.ServeHTTP(recG, reqG)
		var notifs []struct {
			ID   string `json:"id"`
			Read bool   `json:"read"`
		}
		decodeData(t, recG.Body.Bytes(), &notifs)
		if !notifs[0].Read {
			t.Errorf("failed! expected read for the child scope")
		}

		// the parent scope still has an unread pair
		tt := httpTest{
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]int{"unread": 2}),
		}
		reqC, recC := newAuthRequest(http.MethodGet, "/v1/portal/notifications/unread-count", tt.token)
		a.server.ServeHTTP(recC, reqC)
		checkCodeAndData(t, tt, recC)
	})

	t.Run("marking an out of scope notification is not found", func(t *testing.T) {
		tt := httpTest{
			token:    kid2Token,
			wantCode: http.StatusNotFound,
			wantData: errData(t, "notification not found"),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/portal/notifications/"+solo.ID+"/read", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("read-all reports changed pairs and settles the scope", func(t *testing.T) {
		tt := httpTest{
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]int{"updated": 3}), // kid2's pair was read above
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/portal/notifications/read-all", tt.token)
		a.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		ttC := httpTest{
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: okData(t, map[string]int{"unread": 0}),
		}
		reqC, recC := newAuthRequest(http.MethodGet, "/v1/portal/notifications/unread-count", ttC.token)
		a.server.ServeHTTP(recC, reqC)
		checkCodeAndData(t, ttC, recC)
	})
}

func Test_portalApi_stats(t *testing.T) {
	a := setup(t)
	a.seedActivity(t)

	req, rec := newAuthRequest(http.MethodGet, "/v1/portal/stats", getParentToken(t, a.parent))
	a.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var stats struct {
		TotalCourses        int `json:"totalCourses"`
		TotalAttendance     int `json:"totalAttendance"`
		UpcomingSessions    int `json:"upcomingSessions"`
		UnreadNotifications int `json:"unreadNotifications"`
	}
	decodeData(t, rec.Body.Bytes(), &stats)

	if stats.TotalCourses != 3 {
		t.Errorf("failed! totalCourses = %d; want 3", stats.TotalCourses)
	}
	if stats.TotalAttendance != 3 {
		t.Errorf("failed! totalAttendance = %d; want 3", stats.TotalAttendance)
	}
	if stats.UnreadNotifications != 2 {
		t.Errorf("failed! unreadNotifications = %d; want 2", stats.UnreadNotifications)
	}
	// the rolling horizon makes the exact count time dependent; each of the 3
	// enrollments contributes at least one weekly occurrence
	if stats.UpcomingSessions < 3 {
		t.Errorf("failed! upcomingSessions = %d; want >= 3", stats.UpcomingSessions)
	}
}
