package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// DefaultDrainTimeout is the maximum time to wait for buffered events during shutdown.
const DefaultDrainTimeout = 10 * time.Second

type Writer interface {
	Write(ctx context.Context, event domain.FiredEvent) error
}

// MetricsSink defines the interface for recording analytics metrics.
type MetricsSink interface {
	AnalyticsWriteError()
}

// Recorder consumes fired events from the bus and hands them to a Writer.
type Recorder struct {
	writer       Writer
	metrics      MetricsSink // optional, nil = disabled
	drainTimeout time.Duration
}

func NewRecorder(w Writer) *Recorder {
	return &Recorder{writer: w, drainTimeout: DefaultDrainTimeout}
}

// WithMetrics attaches a metrics sink to the recorder.
func (r *Recorder) WithMetrics(sink MetricsSink) *Recorder {
	r.metrics = sink
	return r
}

func (r *Recorder) WithDrainTimeout(d time.Duration) *Recorder {
	r.drainTimeout = d
	return r
}

// Run records events from the channel until ctx is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (r *Recorder) Run(ctx context.Context, ch <-chan domain.FiredEvent) {
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			r.record(ctx, event)
		}
	}
}

// drain processes remaining events in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (r *Recorder) drain(ch <-chan domain.FiredEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			log.Warn().Str("component", "analytics").Int("recorded", count).Msg("drain timeout")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			r.record(drainCtx, event)
			count++
		default:
			if count > 0 {
				log.Info().Str("component", "analytics").Int("recorded", count).Msg("drained buffered events")
			}
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, event domain.FiredEvent) {
	if err := r.writer.Write(ctx, event); err != nil {
		if r.metrics != nil {
			r.metrics.AnalyticsWriteError()
		}
		log.Warn().
			Str("component", "analytics").
			Str("entity_id", event.EntityID).
			Err(err).
			Msg("write failed")
	}
}
