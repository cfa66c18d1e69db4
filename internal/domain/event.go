package domain

import "time"

type EventType string

const (
	EventTypeTask     EventType = "Task"
	EventTypeMeeting  EventType = "Meeting"
	EventTypeNote     EventType = "Note"
	EventTypeReminder EventType = "Reminder"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeTask, EventTypeMeeting, EventTypeNote, EventTypeReminder:
		return true
	}
	return false
}

// CalendarEvent is a dated entry. Events without a time are all-day and are
// never reminded.
type CalendarEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        Date       `json:"date"`
	Type        EventType  `json:"type"`
	Time        *TimeOfDay `json:"time,omitempty"`
	Description string     `json:"description,omitempty"`
	Attendees   string     `json:"attendees,omitempty"`
	Completed   bool       `json:"isCompleted"`
}

func (e CalendarEvent) AllDay() bool {
	return e.Time == nil
}

func (e CalendarEvent) StartsAt(loc *time.Location) (start time.Time, ok bool) {
	if e.Time == nil {
		return time.Time{}, false
	}
	return Instant(e.Date, *e.Time, loc), true
}
