package api

import "github.com/djlord-it/easy-remind/internal/domain"

// AppointmentRequest is the body of POST /appointments and PUT /appointments/{id}.
// PUT replaces the whole appointment; omitted optional fields take their defaults.
type AppointmentRequest struct {
	Title           string `json:"title"`
	ClientName      string `json:"clientName"`
	Contact         string `json:"contact"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Duration        *int   `json:"duration,omitempty"` // default 30
	Type            string `json:"type"`               // default "Video Call"
	Status          string `json:"status"`             // default "Scheduled"
	Notes           string `json:"notes"`
	ReminderEnabled *bool  `json:"reminderEnabled,omitempty"` // default true
}

type EventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Type        string `json:"type"` // default "Task"
	Time        string `json:"time"`
	Description string `json:"description"`
	Attendees   string `json:"attendees"`
	IsCompleted bool   `json:"isCompleted"`
}

type ReminderRequest struct {
	Enabled *bool `json:"enabled"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
}

type ListEventsResponse struct {
	Events []domain.CalendarEvent `json:"events"`
}

type WatcherStatus struct {
	Name            string `json:"name"`
	IntervalSeconds int    `json:"intervalSeconds"`
	Notified        int    `json:"notified"`
}

type NotificationStatusResponse struct {
	Gateway         string          `json:"gateway"`
	Permission      string          `json:"permission"`
	LeadTimeMinutes int             `json:"leadTimeMinutes"`
	Schedulers      []WatcherStatus `json:"schedulers"`
}

type PermissionResponse struct {
	Permission string `json:"permission"`
	Error      string `json:"error,omitempty"`
}

type StatsBucket struct {
	Start string `json:"start"`
	Count int64  `json:"count"`
}

type StatsResponse struct {
	Source  string        `json:"source"`
	Buckets []StatsBucket `json:"buckets"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
