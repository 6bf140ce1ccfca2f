package notification

import "time"

// Type is the display severity of a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeSuccess Type = "success"
	TypeError   Type = "error"
)

// Valid reports whether t is one of the known severities.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeWarning, TypeSuccess, TypeError:
		return true
	}
	return false
}

// RelatedType names the kind of entity a notification is about.
type RelatedType string

const (
	RelatedPayment    RelatedType = "payment"
	RelatedAttendance RelatedType = "attendance"
	RelatedCourse     RelatedType = "course"
	RelatedGeneral    RelatedType = "general"
)

// Valid reports whether t is one of the known related-entity types.
func (t RelatedType) Valid() bool {
	switch t {
	case RelatedPayment, RelatedAttendance, RelatedCourse, RelatedGeneral:
		return true
	}
	return false
}

type (
	// RelatedTo points a notification at the entity it is about, optionally
	// pinned to one student.
	RelatedTo struct {
		Type        RelatedType `json:"type"`
		StudentID   string      `json:"student_id,omitempty"`
		StudentName string      `json:"student_name,omitempty"`
	}

	// Notification is the shared payload. Read state lives per recipient;
	// a notification addressed to several students of one parent is still
	// a single notification from the parent's point of view.
	Notification struct {
		ID        string    `json:"id"`
		Type      Type      `json:"type"`
		Title     string    `json:"title"`
		Body      string    `json:"body"`
		RelatedTo RelatedTo `json:"related_to"`
		CreatedAt time.Time `json:"created_at"`

		// Read is the view for the requesting scope: true only when every
		// in-scope recipient pair has been read.
		Read bool `json:"read"`
	}

	// ReadState is one (notification, recipient) pair.
	ReadState struct {
		NotificationID string
		RecipientID    string
		Read           bool
		UpdatedAt      time.Time
	}

	NewNotification struct {
		Type             Type        `json:"type" validate:"required,oneof=info warning success error"`
		Title            string      `json:"title" validate:"required"`
		Body             string      `json:"body" validate:"required"`
		RelatedType      RelatedType `json:"related_type" validate:"required,oneof=payment attendance course general"`
		RelatedStudentID string      `json:"related_student_id"`
		RecipientIDs     []string    `json:"recipient_ids" validate:"required,min=1"`

		// RelatedStudentName is resolved by the caller, not bound from input.
		RelatedStudentName string `json:"-"`
	}
)
