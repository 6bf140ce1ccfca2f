package attendance

import (
	"time"

	"github.com/trezcool/mainino/core/group"
)

// Status of a student for one session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

type (
	// GroupInfo carries the group metadata an attendance row resolves to.
	// Archived groups are still returned, flagged by Status, never dropped.
	GroupInfo struct {
		ID      string       `json:"id"`
		Name    string       `json:"name"`
		Subject string       `json:"subject"`
		Status  group.Status `json:"status"`
	}

	SessionInfo struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Room      string `json:"room,omitempty"`
	}

	// Record is an attendance row enriched with its group/session metadata.
	Record struct {
		ID          string      `json:"id"`
		StudentID   string      `json:"student_id"`
		StudentName string      `json:"student_name"`
		Date        time.Time   `json:"date"` // UTC
		Status      Status      `json:"status"`
		Group       GroupInfo   `json:"group"`
		Session     SessionInfo `json:"session"`
	}

	// Summary counts a student's attendance by status, unweighted.
	Summary struct {
		Present int `json:"present"`
		Absent  int `json:"absent"`
		Late    int `json:"late"`
	}

	// DateRange bounds a query; zero bounds are open.
	DateRange struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	}
)

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
