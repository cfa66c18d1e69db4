package api

import (
	"fmt"

	"github.com/djlord-it/easy-remind/internal/domain"
)

const (
	defaultDurationMinutes = 30
	maxDurationMinutes     = 24 * 60
)

// ValidationError is a client error in a request body.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// buildAppointment validates req and returns the appointment it describes.
func buildAppointment(id string, req AppointmentRequest) (domain.Appointment, error) {
	if req.Title == "" {
		return domain.Appointment{}, invalid("title is required")
	}
	if req.ClientName == "" {
		return domain.Appointment{}, invalid("clientName is required")
	}

	date, tod, err := parseWhen(req.Date, req.Time)
	if err != nil {
		return domain.Appointment{}, err
	}

	duration := defaultDurationMinutes
	if req.Duration != nil {
		duration = *req.Duration
	}
	if duration < 0 || duration > maxDurationMinutes {
		return domain.Appointment{}, invalid("duration must be between 0 and %d minutes", maxDurationMinutes)
	}

	typ := domain.AppointmentTypeVideoCall
	if req.Type != "" {
		typ = domain.AppointmentType(req.Type)
	}
	if !typ.Valid() {
		return domain.Appointment{}, invalid("invalid type %q", req.Type)
	}

	status := domain.AppointmentStatusScheduled
	if req.Status != "" {
		status = domain.AppointmentStatus(req.Status)
	}
	if !status.Valid() {
		return domain.Appointment{}, invalid("invalid status %q", req.Status)
	}

	reminder := true
	if req.ReminderEnabled != nil {
		reminder = *req.ReminderEnabled
	}

	return domain.Appointment{
		ID:              id,
		Title:           req.Title,
		ClientName:      req.ClientName,
		Contact:         req.Contact,
		Date:            date,
		Time:            tod,
		DurationMinutes: duration,
		Type:            typ,
		Status:          status,
		Notes:           req.Notes,
		ReminderEnabled: reminder,
	}, nil
}

// buildEvent validates req and returns the calendar event it describes.
func buildEvent(id string, req EventRequest) (domain.CalendarEvent, error) {
	if req.Title == "" {
		return domain.CalendarEvent{}, invalid("title is required")
	}

	date, tod, err := parseWhen(req.Date, req.Time)
	if err != nil {
		return domain.CalendarEvent{}, err
	}

	typ := domain.EventTypeTask
	if req.Type != "" {
		typ = domain.EventType(req.Type)
	}
	if !typ.Valid() {
		return domain.CalendarEvent{}, invalid("invalid type %q", req.Type)
	}

	return domain.CalendarEvent{
		ID:          id,
		Title:       req.Title,
		Date:        date,
		Type:        typ,
		Time:        tod,
		Description: req.Description,
		Attendees:   req.Attendees,
		Completed:   req.IsCompleted,
	}, nil
}

// parseWhen parses a required date and an optional time of day.
func parseWhen(dateStr, timeStr string) (domain.Date, *domain.TimeOfDay, error) {
	if dateStr == "" {
		return domain.Date{}, nil, invalid("date is required")
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		return domain.Date{}, nil, invalid("invalid date %q: want YYYY-MM-DD", dateStr)
	}
	if timeStr == "" {
		return date, nil, nil
	}
	tod, err := domain.ParseTimeOfDay(timeStr)
	if err != nil {
		return domain.Date{}, nil, invalid("invalid time %q: want HH:MM", timeStr)
	}
	return date, &tod, nil
}
