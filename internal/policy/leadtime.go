// Package policy holds the eligibility rules the reminder scheduler runs.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/tracker"
)

const (
	DefaultLeadTime            = 15 * time.Minute
	DefaultAppointmentInterval = 60 * time.Second
)

// LeadTime reminds an appointment once it is due within the lead window.
// The window is half open: (now, now+lead]. An appointment whose start
// has passed without being notified is never notified late.
type LeadTime struct {
	lead time.Duration
	loc  *time.Location
}

func NewLeadTime(lead time.Duration, loc *time.Location) *LeadTime {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	if loc == nil {
		loc = time.Local
	}
	return &LeadTime{lead: lead, loc: loc}
}

func (p *LeadTime) Lead() time.Duration {
	return p.lead
}

func (p *LeadTime) ID(a domain.Appointment) string {
	return a.ID
}

func (p *LeadTime) Eligible(a domain.Appointment, now time.Time, notified *tracker.NotifiedSet) bool {
	if !a.ReminderEnabled || a.Status != domain.AppointmentStatusScheduled {
		return false
	}
	due, ok := a.DueAt(p.loc)
	if !ok {
		return false
	}
	if notified.HasFired(a.ID) {
		return false
	}
	until := due.Sub(now)
	return until > 0 && until <= p.lead
}

func (p *LeadTime) Render(a domain.Appointment, now time.Time) domain.Notification {
	due, _ := a.DueAt(p.loc)
	minutes := int(math.Round(due.Sub(now).Minutes()))
	return domain.Notification{
		EntityID: a.ID,
		Source:   domain.SourceAppointments,
		Title:    "Upcoming Appointment: " + a.Title,
		Body:     fmt.Sprintf("With %s in %d minutes.", a.ClientName, minutes),
		DueAt:    due,
	}
}
