package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/tracker"
)

var baseNow = time.Date(2024, time.March, 10, 13, 40, 0, 0, time.UTC)

func appointmentAt(id string, due time.Time) domain.Appointment {
	tod := domain.TimeOfDayOf(due)
	return domain.Appointment{
		ID:              id,
		Title:           "Quarterly review",
		ClientName:      "Acme",
		Date:            domain.DateOf(due),
		Time:            &tod,
		DurationMinutes: 30,
		Type:            domain.AppointmentTypeVideoCall,
		Status:          domain.AppointmentStatusScheduled,
		ReminderEnabled: true,
	}
}

func eventAt(id string, d domain.Date, tod *domain.TimeOfDay) domain.CalendarEvent {
	return domain.CalendarEvent{
		ID:          id,
		Title:       "Client Call: Acme",
		Date:        d,
		Type:        domain.EventTypeMeeting,
		Time:        tod,
		Description: "Discuss Q4 roadmap.",
	}
}

func TestLeadTime_WindowSweep(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	due := baseNow.Add(30 * time.Minute)
	a := appointmentAt("A1", due)

	for offset := -5 * time.Minute; offset <= 40*time.Minute; offset += 30 * time.Second {
		now := due.Add(-offset)
		until := due.Sub(now)
		want := until > 0 && until <= 15*time.Minute

		got := p.Eligible(a, now, tracker.New())
		if got != want {
			t.Errorf("due-now=%s: Eligible = %v, want %v", until, got, want)
		}
	}
}

func TestLeadTime_Boundaries(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	due := baseNow.Add(time.Hour)
	a := appointmentAt("A1", due)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly lead before", due.Add(-15 * time.Minute), true},
		{"just outside lead", due.Add(-15*time.Minute - time.Second), false},
		{"one second before", due.Add(-time.Second), true},
		{"at due time", due, false},
		{"after due time", due.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Eligible(a, tt.now, tracker.New()); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeadTime_Gates(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	now := baseNow
	due := now.Add(10 * time.Minute)

	disabled := appointmentAt("A1", due)
	disabled.ReminderEnabled = false

	completed := appointmentAt("A2", due)
	completed.Status = domain.AppointmentStatusCompleted

	cancelled := appointmentAt("A3", due)
	cancelled.Status = domain.AppointmentStatusCancelled

	untimed := appointmentAt("A4", due)
	untimed.Time = nil

	for _, a := range []domain.Appointment{disabled, completed, cancelled, untimed} {
		if p.Eligible(a, now, tracker.New()) {
			t.Errorf("%s: expected not eligible", a.ID)
		}
	}
}

func TestLeadTime_AlreadyFired(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	a := appointmentAt("A1", baseNow.Add(10*time.Minute))

	notified := tracker.New()
	if !p.Eligible(a, baseNow, notified) {
		t.Fatal("expected eligible before firing")
	}

	notified.MarkFired("A1")
	if p.Eligible(a, baseNow.Add(2*time.Minute), notified) {
		t.Error("expected not eligible once fired")
	}
}

func TestLeadTime_NoLateFiring(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	a := appointmentAt("A1", baseNow.Add(10*time.Minute))

	if !p.Eligible(a, baseNow, tracker.New()) {
		t.Fatal("expected eligible inside window")
	}
	if p.Eligible(a, baseNow.Add(20*time.Minute), tracker.New()) {
		t.Error("expected window to be closed after due time")
	}
}

func TestLeadTime_Render(t *testing.T) {
	p := NewLeadTime(15*time.Minute, time.UTC)
	a := appointmentAt("A1", baseNow.Add(10*time.Minute+20*time.Second))

	n := p.Render(a, baseNow)
	if n.Title != "Upcoming Appointment: Quarterly review" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Body != "With Acme in 10 minutes." {
		t.Errorf("Body = %q", n.Body)
	}
	if n.EntityID != "A1" || n.Source != domain.SourceAppointments {
		t.Errorf("unexpected notification identity: %+v", n)
	}
}

func TestLeadTime_Defaults(t *testing.T) {
	p := NewLeadTime(0, nil)
	if p.Lead() != DefaultLeadTime {
		t.Errorf("Lead = %s, want %s", p.Lead(), DefaultLeadTime)
	}
}

func TestExactMinute_FlipsAtMinuteBoundary(t *testing.T) {
	p := NewExactMinute(time.UTC)
	today := domain.Date{Year: 2024, Month: time.March, Day: 10}
	e := eventAt("E1", today, &domain.TimeOfDay{Hour: 14, Minute: 0})

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"minute before", time.Date(2024, time.March, 10, 13, 59, 59, 0, time.UTC), false},
		{"start of minute", time.Date(2024, time.March, 10, 14, 0, 0, 0, time.UTC), true},
		{"inside minute", time.Date(2024, time.March, 10, 14, 0, 30, 0, time.UTC), true},
		{"end of minute", time.Date(2024, time.March, 10, 14, 0, 59, 999, time.UTC), true},
		{"minute after", time.Date(2024, time.March, 10, 14, 1, 0, 0, time.UTC), false},
		{"other day", time.Date(2024, time.March, 11, 14, 0, 30, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Eligible(e, tt.now, tracker.New()); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExactMinute_AllDayNeverEligible(t *testing.T) {
	p := NewExactMinute(time.UTC)
	now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	e := eventAt("E1", domain.DateOf(now), nil)

	for i := 0; i < 24*60; i += 7 {
		if p.Eligible(e, now.Add(time.Duration(i)*time.Minute), tracker.New()) {
			t.Fatalf("all-day event eligible at %s", now.Add(time.Duration(i)*time.Minute))
		}
	}
}

func TestExactMinute_AlreadyFired(t *testing.T) {
	p := NewExactMinute(time.UTC)
	now := time.Date(2024, time.March, 10, 14, 0, 30, 0, time.UTC)
	e := eventAt("E1", domain.DateOf(now), &domain.TimeOfDay{Hour: 14, Minute: 0})

	notified := tracker.New()
	notified.MarkFired("E1")

	if p.Eligible(e, now, notified) {
		t.Error("expected not eligible once fired")
	}
}

func TestExactMinute_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	p := NewExactMinute(loc)
	e := eventAt("E1", domain.Date{Year: 2024, Month: time.March, Day: 10}, &domain.TimeOfDay{Hour: 9, Minute: 0})

	now := time.Date(2024, time.March, 10, 14, 0, 10, 0, time.UTC)
	if !p.Eligible(e, now, tracker.New()) {
		t.Error("expected 14:00 UTC to match 09:00 UTC-5")
	}
}

func TestExactMinute_Render(t *testing.T) {
	p := NewExactMinute(time.UTC)
	now := time.Date(2024, time.March, 10, 14, 0, 30, 0, time.UTC)
	e := eventAt("E1", domain.DateOf(now), &domain.TimeOfDay{Hour: 14, Minute: 0})

	n := p.Render(e, now)
	if n.Title != "Reminder: Client Call: Acme" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Body != "Meeting is starting now.\nDiscuss Q4 roadmap." {
		t.Errorf("Body = %q", n.Body)
	}

	e.Description = ""
	n = p.Render(e, now)
	if strings.Contains(n.Body, "\n") {
		t.Errorf("Body without description should be one line, got %q", n.Body)
	}
}
