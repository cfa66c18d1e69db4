package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

func TestBuildKey(t *testing.T) {
	at := time.Date(2024, 3, 10, 14, 7, 30, 0, time.UTC)

	tests := []struct {
		window time.Duration
		want   string
	}{
		{time.Minute, "n:calendar:202403101407"},
		{5 * time.Minute, "n:calendar:202403101405"},
		{time.Hour, "n:calendar:2024031014"},
		{0, "n:calendar:202403101407"},
	}

	for _, tt := range tests {
		t.Run(tt.window.String(), func(t *testing.T) {
			if got := buildKey(domain.SourceCalendar, at, tt.window); got != tt.want {
				t.Errorf("buildKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateToBucket_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 3, 10, 16, 7, 0, 0, loc)

	if got := truncateToBucket(at, time.Hour); got != "2024031014" {
		t.Errorf("truncateToBucket = %q, want 2024031014", got)
	}
}

func TestParseCount(t *testing.T) {
	if parseCount("12") != 12 {
		t.Error("expected 12")
	}
	if parseCount(nil) != 0 {
		t.Error("missing bucket should count as zero")
	}
	if parseCount("x") != 0 {
		t.Error("garbage should count as zero")
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	events []domain.FiredEvent
	err    error
}

func (w *fakeWriter) Write(ctx context.Context, event domain.FiredEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, event)
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors int
}

func (m *fakeMetrics) AnalyticsWriteError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

func firedEvent() domain.FiredEvent {
	return domain.FiredEvent{
		ID:       uuid.New(),
		EntityID: "A1",
		Source:   domain.SourceAppointments,
		FiredAt:  time.Now().UTC(),
	}
}

func TestRecorder_Run(t *testing.T) {
	w := &fakeWriter{}
	ch := make(chan domain.FiredEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewRecorder(w).Run(ctx, ch)
		close(done)
	}()

	ch <- firedEvent()
	ch <- firedEvent()

	deadline := time.Now().Add(2 * time.Second)
	for w.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if w.count() != 2 {
		t.Errorf("recorded %d events, want 2", w.count())
	}
}

func TestRecorder_DrainsBufferedEventsOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	ch := make(chan domain.FiredEvent, 10)
	for i := 0; i < 5; i++ {
		ch <- firedEvent()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewRecorder(w).Run(ctx, ch)

	if w.count() != 5 {
		t.Errorf("recorded %d events, want 5", w.count())
	}
}

func TestRecorder_WriteErrorCounted(t *testing.T) {
	w := &fakeWriter{err: errors.New("redis down")}
	m := &fakeMetrics{}
	ch := make(chan domain.FiredEvent, 2)
	ch <- firedEvent()
	close(ch)

	NewRecorder(w).WithMetrics(m).Run(context.Background(), ch)

	if m.errors != 1 {
		t.Errorf("write errors = %d, want 1", m.errors)
	}
}

func TestRedisSink_DisabledIsNoOp(t *testing.T) {
	s := NewRedisSink(nil, Config{Enabled: false})
	if err := s.Write(context.Background(), firedEvent()); err != nil {
		t.Errorf("disabled sink returned %v", err)
	}
}
