package group

import (
	"strings"
	"time"
)

// Status of a course offering. Archived groups stay queryable for
// historical views but are excluded from active course listings.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// TimeSlot is a recurring weekly slot of a Group, e.g. Monday 10:00-11:00.
type TimeSlot struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"start_time" validate:"required,clocktime"`
	EndTime   string `json:"end_time" validate:"required,clocktime"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday resolves the slot's day name; ok is false for unknown names.
func (ts TimeSlot) Weekday() (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(ts.Day))]
	return d, ok
}

// Minutes returns the slot bounds as minutes from midnight; ok is false
// if either bound is not a valid wall-clock time or the slot is inverted.
func (ts TimeSlot) Minutes() (start, end int, ok bool) {
	start, ok = clockMinutes(ts.StartTime)
	if !ok {
		return 0, 0, false
	}
	end, ok = clockMinutes(ts.EndTime)
	if !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func clockMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

type Group struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Subject   string     `json:"subject"`
	Level     string     `json:"level"`
	Room      string     `json:"room,omitempty"`
	TimeSlots []TimeSlot `json:"time_slots"`
	TeacherID string     `json:"teacher_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

type TeacherInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Course is a per-student view of a Group, the unit the portals list and
// the dashboard counts. A course shared by two siblings yields two rows.
type Course struct {
	ID          string      `json:"id"` // group id
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	Name        string      `json:"group_name"`
	Subject     string      `json:"subject"`
	Level       string      `json:"level"`
	Room        string      `json:"room,omitempty"`
	TimeSlots   []TimeSlot  `json:"time_slots"`
	Teacher     TeacherInfo `json:"teacher"`
	Status      Status      `json:"status"`
}

// Session is a concrete dated occurrence of a Group time slot.
type Session struct {
	GroupID   string    `json:"group_id"`
	GroupName string    `json:"group_name"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"` // UTC midnight
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Room      string    `json:"room,omitempty"`
}

// Override replaces the inherited times/room of a group's occurrence on a
// specific date.
type Override struct {
	GroupID   string    `json:"group_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Room      string    `json:"room,omitempty"`
}

type NewGroup struct {
	Name      string     `json:"name" validate:"required"`
	Subject   string     `json:"subject" validate:"required"`
	Level     string     `json:"level" validate:"required"`
	Room      string     `json:"room"`
	TimeSlots []TimeSlot `json:"time_slots" validate:"required,min=1,dive"`
	TeacherID string     `json:"teacher_id" validate:"required"`
}
