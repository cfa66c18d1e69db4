// Package scheduler runs reminder policies against registry snapshots.
//
// A Scheduler owns one Notified-Set. Each tick it reads a fresh snapshot,
// asks its policy which entities are due, dispatches each through the
// gateway and marks the id as notified only after the gateway accepted it.
// A failed dispatch leaves the id unmarked so the next tick can retry while
// the policy still considers the entity eligible.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/cron"
	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/notify"
	"github.com/djlord-it/easy-remind/internal/tracker"
)

type Source[E any] interface {
	Snapshot(ctx context.Context) ([]E, error)
}

type Policy[E any] interface {
	ID(e E) string
	Eligible(e E, now time.Time, notified *tracker.NotifiedSet) bool
	Render(e E, now time.Time) domain.Notification
}

type Gateway interface {
	PermissionState() notify.PermissionState
	RequestPermission(ctx context.Context) (notify.PermissionState, error)
	Dispatch(ctx context.Context, n domain.Notification) error
}

type EventEmitter interface {
	Emit(ctx context.Context, event domain.FiredEvent) error
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickStarted(scheduler string)
	TickCompleted(scheduler string, duration time.Duration, fired int, err error)
	TickSkipped(scheduler string, reason string)
	DispatchOutcome(scheduler string, outcome string)
	NotifiedSetSize(scheduler string, size int)
}

// Gate decides whether this process may dispatch. A scheduler whose gate is
// closed keeps ticking but skips every tick.
type Gate interface {
	Leading() bool
}

type Config struct {
	Name     string
	Interval time.Duration
}

// Due is an entity selected for notification by one tick.
type Due[E any] struct {
	Entity       E
	ID           string
	Notification domain.Notification
}

type TickResult struct {
	Skipped   bool
	Evaluated int
	Due       int
	Fired     int
	Failed    int
}

type Scheduler[E any] struct {
	config   Config
	source   Source[E]
	policy   Policy[E]
	gateway  Gateway
	notified *tracker.NotifiedSet
	cadence  cron.Schedule
	emitter  EventEmitter // optional, nil = disabled
	metrics  MetricsSink  // optional, nil = disabled
	gate     Gate         // optional, nil = always open
	clock    func() time.Time

	askOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New[E any](config Config, source Source[E], policy Policy[E], gateway Gateway) *Scheduler[E] {
	return &Scheduler[E]{
		config:   config,
		source:   source,
		policy:   policy,
		gateway:  gateway,
		notified: tracker.New(),
		cadence:  cron.Every(config.Interval),
		clock:    time.Now,
	}
}

func (s *Scheduler[E]) WithEmitter(e EventEmitter) *Scheduler[E] {
	s.emitter = e
	return s
}

// WithGate makes every tick conditional on g.Leading().
func (s *Scheduler[E]) WithGate(g Gate) *Scheduler[E] {
	s.gate = g
	return s
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler[E]) WithMetrics(sink MetricsSink) *Scheduler[E] {
	s.metrics = sink
	return s
}

func (s *Scheduler[E]) Name() string {
	return s.config.Name
}

func (s *Scheduler[E]) Interval() time.Duration {
	return s.config.Interval
}

// Tracker returns the scheduler's Notified-Set.
func (s *Scheduler[E]) Tracker() *tracker.NotifiedSet {
	return s.notified
}

// Start runs the scheduler in its own goroutine. Calling Start on a started
// or stopped scheduler does nothing.
func (s *Scheduler[E]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.Run(runCtx)
	}()
}

// Stop cancels the loop and waits for an in-flight tick to finish.
// It is safe to call more than once.
func (s *Scheduler[E]) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run evaluates ticks until ctx is cancelled. The wait for the next tick
// starts after the previous tick returns, so ticks never overlap.
func (s *Scheduler[E]) Run(ctx context.Context) error {
	logger := log.With().Str("component", "scheduler").Str("scheduler", s.config.Name).Logger()
	logger.Info().Dur("interval", s.config.Interval).Msg("started")

	s.ensurePermission(ctx)

	for {
		now := s.clock()
		wait := s.cadence.Next(now).Sub(now)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("stopped")
			return ctx.Err()
		case <-timer.C:
		}

		// The tick outlives cancellation so Stop never interrupts a dispatch.
		if _, err := s.Tick(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("tick error")
		}
	}
}

// ensurePermission asks the gateway once, and only if nobody asked yet.
func (s *Scheduler[E]) ensurePermission(ctx context.Context) {
	s.askOnce.Do(func() {
		if s.gateway.PermissionState() != notify.PermissionUnasked {
			return
		}
		state, err := s.gateway.RequestPermission(ctx)
		ev := log.Info()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("component", "scheduler").
			Str("scheduler", s.config.Name).
			Str("permission", state.String()).
			Msg("notification permission requested")
	})
}

// Evaluate selects the entities due at now, in snapshot order.
// It does not touch the Notified-Set.
func (s *Scheduler[E]) Evaluate(now time.Time, entities []E) []Due[E] {
	var due []Due[E]
	for _, e := range entities {
		if !s.policy.Eligible(e, now, s.notified) {
			continue
		}
		due = append(due, Due[E]{
			Entity:       e,
			ID:           s.policy.ID(e),
			Notification: s.policy.Render(e, now),
		})
	}
	return due
}

// Tick runs one evaluation pass. Without granted permission it returns
// immediately without reading the registry.
func (s *Scheduler[E]) Tick(ctx context.Context) (TickResult, error) {
	if s.gateway.PermissionState() != notify.PermissionGranted {
		log.Debug().Str("component", "scheduler").Str("scheduler", s.config.Name).Msg("permission not granted, skipping tick")
		if s.metrics != nil {
			s.metrics.TickSkipped(s.config.Name, "permission")
		}
		return TickResult{Skipped: true}, nil
	}
	if s.gate != nil && !s.gate.Leading() {
		log.Debug().Str("component", "scheduler").Str("scheduler", s.config.Name).Msg("not leader, skipping tick")
		if s.metrics != nil {
			s.metrics.TickSkipped(s.config.Name, "standby")
		}
		return TickResult{Skipped: true}, nil
	}

	start := s.clock()
	if s.metrics != nil {
		s.metrics.TickStarted(s.config.Name)
	}

	entities, err := s.source.Snapshot(ctx)
	if err != nil {
		err = fmt.Errorf("snapshot: %w", err)
		if s.metrics != nil {
			s.metrics.TickCompleted(s.config.Name, s.clock().Sub(start), 0, err)
		}
		return TickResult{}, err
	}

	due := s.Evaluate(start, entities)
	result := TickResult{Evaluated: len(entities), Due: len(due)}

	for _, d := range due {
		if err := s.fire(ctx, d, start); err != nil {
			result.Failed++
			log.Warn().
				Str("component", "scheduler").
				Str("scheduler", s.config.Name).
				Str("entity_id", d.ID).
				Err(err).
				Msg("dispatch failed, will retry next tick")
			continue
		}
		result.Fired++
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.config.Name, s.clock().Sub(start), result.Fired, nil)
		s.metrics.NotifiedSetSize(s.config.Name, s.notified.Len())
	}
	return result, nil
}

func (s *Scheduler[E]) fire(ctx context.Context, d Due[E], now time.Time) error {
	// A snapshot may repeat an id; only the first occurrence is sent.
	if s.notified.HasFired(d.ID) {
		return nil
	}

	if err := s.gateway.Dispatch(ctx, d.Notification); err != nil {
		if s.metrics != nil {
			s.metrics.DispatchOutcome(s.config.Name, "failed")
		}
		return fmt.Errorf("dispatch: %w", err)
	}

	s.notified.MarkFired(d.ID)
	if s.metrics != nil {
		s.metrics.DispatchOutcome(s.config.Name, "delivered")
	}

	log.Info().
		Str("component", "scheduler").
		Str("scheduler", s.config.Name).
		Str("entity_id", d.ID).
		Time("due_at", d.Notification.DueAt).
		Msg("notified")

	if s.emitter != nil {
		event := domain.FiredEvent{
			ID:       uuid.New(),
			EntityID: d.ID,
			Source:   d.Notification.Source,
			Title:    d.Notification.Title,
			Body:     d.Notification.Body,
			DueAt:    d.Notification.DueAt,
			FiredAt:  now,
		}
		if err := s.emitter.Emit(ctx, event); err != nil {
			log.Warn().Str("component", "scheduler").Str("entity_id", d.ID).Err(err).Msg("emit fired event")
		}
	}
	return nil
}
