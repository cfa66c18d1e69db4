package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal        *prometheus.CounterVec
	tickErrorsTotal   *prometheus.CounterVec
	ticksSkippedTotal *prometheus.CounterVec
	firedTotal        *prometheus.CounterVec
	tickDuration      *prometheus.HistogramVec
	dispatchOutcomes  *prometheus.CounterVec
	notifiedSetSize   *prometheus.GaugeVec

	// Gateway metrics
	gatewayAttemptsTotal *prometheus.CounterVec
	gatewayDuration      *prometheus.HistogramVec

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	analyticsErrorsTotal prometheus.Counter

	// Leader election metrics
	isLeader            prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initGatewayMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	labels := []string{"scheduler"}

	s.ticksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_ticks_total",
		Help: "Total number of scheduler ticks evaluated.",
	}, labels)
	s.tickErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_tick_errors_total",
		Help: "Total number of scheduler ticks abandoned on error.",
	}, labels)
	s.ticksSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_ticks_skipped_total",
		Help: "Total number of ticks skipped without evaluating entities.",
	}, []string{"scheduler", "reason"})
	s.firedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_notifications_fired_total",
		Help: "Total number of notifications delivered.",
	}, labels)
	s.tickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyremind_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, labels)
	s.dispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_scheduler_dispatch_outcomes_total",
		Help: "Total number of dispatch outcomes.",
	}, []string{"scheduler", "outcome"})
	s.notifiedSetSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "easyremind_scheduler_notified_set_size",
		Help: "Number of entity ids already notified.",
	}, labels)

	s.register(reg, s.ticksTotal, "easyremind_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "easyremind_scheduler_tick_errors_total")
	s.register(reg, s.ticksSkippedTotal, "easyremind_scheduler_ticks_skipped_total")
	s.register(reg, s.firedTotal, "easyremind_scheduler_notifications_fired_total")
	s.register(reg, s.tickDuration, "easyremind_scheduler_tick_duration_seconds")
	s.register(reg, s.dispatchOutcomes, "easyremind_scheduler_dispatch_outcomes_total")
	s.register(reg, s.notifiedSetSize, "easyremind_scheduler_notified_set_size")
}

func (s *PrometheusSink) initGatewayMetrics(reg prometheus.Registerer) {
	s.gatewayAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_gateway_attempts_total",
		Help: "Total number of gateway delivery attempts.",
	}, []string{"gateway", "status_class"})
	s.gatewayDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyremind_gateway_duration_seconds",
		Help:    "Gateway delivery latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"gateway"})

	s.register(reg, s.gatewayAttemptsTotal, "easyremind_gateway_attempts_total")
	s.register(reg, s.gatewayDuration, "easyremind_gateway_duration_seconds")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_capacity",
		Help: "Capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_eventbus_buffer_saturation",
		Help: "Event bus buffer size divided by capacity.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})
	s.analyticsErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_analytics_write_errors_total",
		Help: "Total number of failed analytics writes.",
	})

	s.register(reg, s.bufferSize, "easyremind_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "easyremind_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "easyremind_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "easyremind_eventbus_emit_errors_total")
	s.register(reg, s.analyticsErrorsTotal, "easyremind_analytics_write_errors_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "easyremind_leader_is_leader",
		Help: "1 if this instance holds the dispatch lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyremind_leader_acquired_total",
		Help: "Total number of times this instance became leader.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyremind_leader_lost_total",
		Help: "Total number of times this instance lost leadership.",
	}, []string{"reason"})

	s.register(reg, s.isLeader, "easyremind_leader_is_leader")
	s.register(reg, s.leaderAcquiredTotal, "easyremind_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "easyremind_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Warn().Str("component", "metrics").Err(err).Msgf("failed to register %s", name)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted(scheduler string) {
	s.ticksTotal.WithLabelValues(scheduler).Inc()
}

func (s *PrometheusSink) TickCompleted(scheduler string, duration time.Duration, fired int, err error) {
	s.tickDuration.WithLabelValues(scheduler).Observe(duration.Seconds())
	s.firedTotal.WithLabelValues(scheduler).Add(float64(fired))
	if err != nil {
		s.tickErrorsTotal.WithLabelValues(scheduler).Inc()
	}
}

func (s *PrometheusSink) TickSkipped(scheduler string, reason string) {
	s.ticksSkippedTotal.WithLabelValues(scheduler, reason).Inc()
}

func (s *PrometheusSink) DispatchOutcome(scheduler string, outcome string) {
	s.dispatchOutcomes.WithLabelValues(scheduler, outcome).Inc()
}

func (s *PrometheusSink) NotifiedSetSize(scheduler string, size int) {
	s.notifiedSetSize.WithLabelValues(scheduler).Set(float64(size))
}

// Gateway metrics implementation

func (s *PrometheusSink) GatewayAttemptCompleted(gateway string, statusClass string, duration time.Duration) {
	s.gatewayAttemptsTotal.WithLabelValues(gateway, statusClass).Inc()
	s.gatewayDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

func (s *PrometheusSink) AnalyticsWriteError() {
	s.analyticsErrorsTotal.Inc()
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.isLeader.Set(1)
	} else {
		s.isLeader.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
