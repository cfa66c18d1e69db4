package domain

import "time"

type AppointmentType string

const (
	AppointmentTypeInPerson  AppointmentType = "In-Person"
	AppointmentTypeVideoCall AppointmentType = "Video Call"
	AppointmentTypePhone     AppointmentType = "Phone"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentTypeInPerson, AppointmentTypeVideoCall, AppointmentTypePhone:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is a client meeting. Only Scheduled appointments with
// ReminderEnabled set are ever reminded.
type Appointment struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	ClientName      string            `json:"clientName"`
	Contact         string            `json:"contact"`
	Date            Date              `json:"date"`
	Time            *TimeOfDay        `json:"time,omitempty"`
	DurationMinutes int               `json:"duration"`
	Type            AppointmentType   `json:"type"`
	Status          AppointmentStatus `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	ReminderEnabled bool              `json:"reminderEnabled"`
}

// DueAt returns the start instant in loc. ok is false when no time is set.
func (a Appointment) DueAt(loc *time.Location) (due time.Time, ok bool) {
	if a.Time == nil {
		return time.Time{}, false
	}
	return Instant(a.Date, *a.Time, loc), true
}
