package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

type appointmentRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	ClientName      string         `db:"client_name"`
	Contact         string         `db:"contact"`
	DueDate         time.Time      `db:"due_date"`
	DueTime         sql.NullString `db:"due_time"`
	DurationMinutes int            `db:"duration_minutes"`
	Type            string         `db:"type"`
	Status          string         `db:"status"`
	Notes           string         `db:"notes"`
	ReminderEnabled bool           `db:"reminder_enabled"`
}

func appointmentToRow(a domain.Appointment) appointmentRow {
	return appointmentRow{
		ID:              a.ID,
		Title:           a.Title,
		ClientName:      a.ClientName,
		Contact:         a.Contact,
		DueDate:         dateToTime(a.Date),
		DueTime:         timeOfDayToNull(a.Time),
		DurationMinutes: a.DurationMinutes,
		Type:            string(a.Type),
		Status:          string(a.Status),
		Notes:           a.Notes,
		ReminderEnabled: a.ReminderEnabled,
	}
}

func appointmentFromRow(r appointmentRow) (domain.Appointment, error) {
	tod, err := nullToTimeOfDay(r.DueTime)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s: %w", r.ID, err)
	}
	return domain.Appointment{
		ID:              r.ID,
		Title:           r.Title,
		ClientName:      r.ClientName,
		Contact:         r.Contact,
		Date:            domain.DateOf(r.DueDate),
		Time:            tod,
		DurationMinutes: r.DurationMinutes,
		Type:            domain.AppointmentType(r.Type),
		Status:          domain.AppointmentStatus(r.Status),
		Notes:           r.Notes,
		ReminderEnabled: r.ReminderEnabled,
	}, nil
}

type eventRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	EventDate   time.Time      `db:"event_date"`
	Type        string         `db:"type"`
	EventTime   sql.NullString `db:"event_time"`
	Description string         `db:"description"`
	Attendees   string         `db:"attendees"`
	IsCompleted bool           `db:"is_completed"`
}

func eventToRow(e domain.CalendarEvent) eventRow {
	return eventRow{
		ID:          e.ID,
		Title:       e.Title,
		EventDate:   dateToTime(e.Date),
		Type:        string(e.Type),
		EventTime:   timeOfDayToNull(e.Time),
		Description: e.Description,
		Attendees:   e.Attendees,
		IsCompleted: e.Completed,
	}
}

func eventFromRow(r eventRow) (domain.CalendarEvent, error) {
	tod, err := nullToTimeOfDay(r.EventTime)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("event %s: %w", r.ID, err)
	}
	return domain.CalendarEvent{
		ID:          r.ID,
		Title:       r.Title,
		Date:        domain.DateOf(r.EventDate),
		Type:        domain.EventType(r.Type),
		Time:        tod,
		Description: r.Description,
		Attendees:   r.Attendees,
		Completed:   r.IsCompleted,
	}, nil
}

// DATE columns carry no zone; midnight UTC round-trips through lib/pq unchanged.
func dateToTime(d domain.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func timeOfDayToNull(t *domain.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func nullToTimeOfDay(s sql.NullString) (*domain.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	tod, err := domain.ParseTimeOfDay(s.String)
	if err != nil {
		return nil, err
	}
	return &tod, nil
}
