package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source names the collection an entity was taken from.
type Source string

const (
	SourceAppointments Source = "appointments"
	SourceCalendar     Source = "calendar"
)

// Notification is what a gateway delivers to the user.
type Notification struct {
	EntityID string    `json:"entity_id"`
	Source   Source    `json:"source"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	DueAt    time.Time `json:"due_at"`
}

// FiredEvent records one successful delivery.
type FiredEvent struct {
	ID       uuid.UUID
	EntityID string
	Source   Source
	Title    string
	Body     string
	DueAt    time.Time
	FiredAt  time.Time
}
