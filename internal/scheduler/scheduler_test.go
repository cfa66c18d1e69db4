package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/notify"
	"github.com/djlord-it/easy-remind/internal/policy"
	"github.com/djlord-it/easy-remind/internal/testutil"
)

// mockSource returns a copy of its entities on every snapshot.
type mockSource[E any] struct {
	mu        sync.Mutex
	entities  []E
	err       error
	snapshots int
}

func (s *mockSource[E]) Snapshot(ctx context.Context) ([]E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]E, len(s.entities))
	copy(out, s.entities)
	return out, nil
}

func (s *mockSource[E]) set(entities ...E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = entities
}

func (s *mockSource[E]) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots
}

// mockGateway records dispatched notifications.
type mockGateway struct {
	mu          sync.Mutex
	state       notify.PermissionState
	grantOnAsk  notify.PermissionState
	requests    int
	dispatchErr error
	sent        []domain.Notification
}

func newGrantedGateway() *mockGateway {
	return &mockGateway{state: notify.PermissionGranted}
}

func (g *mockGateway) PermissionState() notify.PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *mockGateway) RequestPermission(ctx context.Context) (notify.PermissionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	g.state = g.grantOnAsk
	return g.state, nil
}

func (g *mockGateway) Dispatch(ctx context.Context, n domain.Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dispatchErr != nil {
		return g.dispatchErr
	}
	g.sent = append(g.sent, n)
	return nil
}

func (g *mockGateway) setDispatchErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatchErr = err
}

func (g *mockGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *mockGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

// mockEmitter tracks emitted events.
type mockEmitter struct {
	mu     sync.Mutex
	events []domain.FiredEvent
	err    error
}

func (e *mockEmitter) Emit(ctx context.Context, event domain.FiredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *mockEmitter) eventCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

var baseNow = time.Date(2024, time.March, 10, 13, 40, 0, 0, time.UTC)

func appointment(id string, due time.Time) domain.Appointment {
	tod := domain.TimeOfDayOf(due)
	return domain.Appointment{
		ID:              id,
		Title:           "Review " + id,
		ClientName:      "Acme",
		Date:            domain.DateOf(due),
		Time:            &tod,
		Type:            domain.AppointmentTypePhone,
		Status:          domain.AppointmentStatusScheduled,
		ReminderEnabled: true,
	}
}

func newAppointmentScheduler(src *mockSource[domain.Appointment], gw *mockGateway, clock *testutil.FakeClock) *Scheduler[domain.Appointment] {
	s := New[domain.Appointment](
		Config{Name: "appointments", Interval: time.Minute},
		src,
		policy.NewLeadTime(15*time.Minute, time.UTC),
		gw,
	)
	s.clock = clock.Now
	return s
}

func TestScheduler_FiresOnceInsideWindow(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(10*time.Minute)))
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)
	ctx := testutil.TestContext(t)

	for i := 0; i < 5; i++ {
		if _, err := sched.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	if gw.sentCount() != 1 {
		t.Fatalf("sent %d notifications, want 1", gw.sentCount())
	}
	if !sched.Tracker().HasFired("A1") {
		t.Error("A1 should be in the notified set")
	}
	if gw.sent[0].Title != "Upcoming Appointment: Review A1" || gw.sent[0].Body != "With Acme in 10 minutes." {
		t.Errorf("unexpected notification: %+v", gw.sent[0])
	}
}

func TestScheduler_NoLateFiringAfterWindow(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow.Add(20 * time.Minute))
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(10*time.Minute)))
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)

	res, err := sched.Tick(testutil.TestContext(t))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Due != 0 || gw.sentCount() != 0 {
		t.Errorf("expected nothing due after the appointment started, got %+v", res)
	}
}

func TestScheduler_AlreadyFiredNotEligible(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow.Add(10 * time.Minute))
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(20*time.Minute)))
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)
	ctx := testutil.TestContext(t)

	sched.Tick(ctx)
	clock.Set(baseNow.Add(12 * time.Minute))
	res, _ := sched.Tick(ctx)

	if res.Due != 0 {
		t.Errorf("Due = %d on second tick, want 0", res.Due)
	}
	if gw.sentCount() != 1 {
		t.Errorf("sent %d, want 1", gw.sentCount())
	}
}

func TestScheduler_NoDispatchWithoutPermission(t *testing.T) {
	for _, state := range []notify.PermissionState{notify.PermissionUnasked, notify.PermissionDenied} {
		t.Run(state.String(), func(t *testing.T) {
			clock := testutil.NewFakeClock(baseNow)
			src := &mockSource[domain.Appointment]{}
			src.set(appointment("A1", baseNow.Add(5*time.Minute)))
			gw := &mockGateway{state: state}
			sched := newAppointmentScheduler(src, gw, clock)

			res, err := sched.Tick(testutil.TestContext(t))
			if err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if !res.Skipped {
				t.Error("expected skipped tick")
			}
			if src.snapshotCount() != 0 {
				t.Error("skipped tick must not read the registry")
			}
			if gw.sentCount() != 0 || sched.Tracker().Len() != 0 {
				t.Error("skipped tick must not dispatch or mark")
			}
		})
	}
}

func TestScheduler_DispatchFailureRetriesNextTick(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(10*time.Minute)))
	gw := newGrantedGateway()
	gw.setDispatchErr(errors.New("broker unavailable"))
	sched := newAppointmentScheduler(src, gw, clock)
	ctx := testutil.TestContext(t)

	res, err := sched.Tick(ctx)
	if err != nil {
		t.Fatalf("dispatch failure must not fail the tick: %v", err)
	}
	if res.Failed != 1 || res.Fired != 0 {
		t.Errorf("result = %+v, want one failure", res)
	}
	if sched.Tracker().HasFired("A1") {
		t.Fatal("failed dispatch must not mark the id")
	}

	gw.setDispatchErr(nil)
	clock.Advance(time.Minute)
	res, _ = sched.Tick(ctx)
	if res.Fired != 1 {
		t.Errorf("retry result = %+v, want fired", res)
	}
	if !sched.Tracker().HasFired("A1") {
		t.Error("A1 should be marked after successful retry")
	}
}

func TestScheduler_SnapshotErrorAbandonsTick(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{err: errors.New("db down")}
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)

	if _, err := sched.Tick(testutil.TestContext(t)); err == nil {
		t.Fatal("expected snapshot error")
	}
	if gw.sentCount() != 0 {
		t.Error("nothing should be sent")
	}
}

func TestScheduler_DisabledReminderSuppressed(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	a := appointment("A1", baseNow.Add(10*time.Minute))
	a.ReminderEnabled = false
	src := &mockSource[domain.Appointment]{}
	src.set(a)
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)
	ctx := testutil.TestContext(t)

	for i := 0; i < 20; i++ {
		sched.Tick(ctx)
		clock.Advance(time.Minute)
	}
	if gw.sentCount() != 0 {
		t.Errorf("sent %d, want 0", gw.sentCount())
	}
}

func TestScheduler_ReadsFreshSnapshotEachTick(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)
	ctx := testutil.TestContext(t)

	sched.Tick(ctx)
	src.set(appointment("A2", baseNow.Add(14*time.Minute)))
	sched.Tick(ctx)

	if gw.sentCount() != 1 {
		t.Errorf("sent %d, want 1 after entity added", gw.sentCount())
	}
}

func TestScheduler_DuplicateIDInSnapshotSentOnce(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	a := appointment("A1", baseNow.Add(10*time.Minute))
	src.set(a, a)
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock)

	sched.Tick(testutil.TestContext(t))
	if gw.sentCount() != 1 {
		t.Errorf("sent %d, want 1", gw.sentCount())
	}
}

func TestScheduler_EmitsFiredEvent(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(10*time.Minute)))
	gw := newGrantedGateway()
	emitter := &mockEmitter{}
	sched := newAppointmentScheduler(src, gw, clock).WithEmitter(emitter)

	sched.Tick(testutil.TestContext(t))

	if emitter.eventCount() != 1 {
		t.Fatalf("emitted %d events, want 1", emitter.eventCount())
	}
	ev := emitter.events[0]
	if ev.EntityID != "A1" || ev.Source != domain.SourceAppointments {
		t.Errorf("unexpected event identity: %+v", ev)
	}
	if !ev.FiredAt.Equal(baseNow) {
		t.Errorf("FiredAt = %v, want %v", ev.FiredAt, baseNow)
	}
}

func TestScheduler_EmitterErrorStillMarks(t *testing.T) {
	clock := testutil.NewFakeClock(baseNow)
	src := &mockSource[domain.Appointment]{}
	src.set(appointment("A1", baseNow.Add(10*time.Minute)))
	gw := newGrantedGateway()
	sched := newAppointmentScheduler(src, gw, clock).WithEmitter(&mockEmitter{err: errors.New("buffer full")})

	res, _ := sched.Tick(testutil.TestContext(t))
	if res.Fired != 1 || !sched.Tracker().HasFired("A1") {
		t.Errorf("delivered notification must be marked even if the event is dropped: %+v", res)
	}
}
