package policy

import (
	"fmt"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/tracker"
)

const DefaultCalendarInterval = 20 * time.Second

// ExactMinute reminds a calendar event during the minute it starts.
// There is no grace window: if no tick lands inside that minute the event
// is never reminded. The poll interval must stay below one minute.
type ExactMinute struct {
	loc *time.Location
}

func NewExactMinute(loc *time.Location) *ExactMinute {
	if loc == nil {
		loc = time.Local
	}
	return &ExactMinute{loc: loc}
}

func (p *ExactMinute) ID(e domain.CalendarEvent) string {
	return e.ID
}

func (p *ExactMinute) Eligible(e domain.CalendarEvent, now time.Time, notified *tracker.NotifiedSet) bool {
	if e.Time == nil {
		return false
	}
	if notified.HasFired(e.ID) {
		return false
	}
	local := now.In(p.loc)
	return domain.DateOf(local) == e.Date && domain.TimeOfDayOf(local) == *e.Time
}

func (p *ExactMinute) Render(e domain.CalendarEvent, now time.Time) domain.Notification {
	start, _ := e.StartsAt(p.loc)
	body := fmt.Sprintf("%s is starting now.", e.Type)
	if e.Description != "" {
		body += "\n" + e.Description
	}
	return domain.Notification{
		EntityID: e.ID,
		Source:   domain.SourceCalendar,
		Title:    "Reminder: " + e.Title,
		Body:     body,
		DueAt:    start,
	}
}
