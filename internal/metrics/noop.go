package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted(scheduler string)                                          {}
func (n *NoopSink) TickCompleted(scheduler string, d time.Duration, fired int, err error) {}
func (n *NoopSink) TickSkipped(scheduler string, reason string)                           {}
func (n *NoopSink) DispatchOutcome(scheduler string, outcome string)                      {}
func (n *NoopSink) NotifiedSetSize(scheduler string, size int)                            {}
func (n *NoopSink) GatewayAttemptCompleted(gateway, statusClass string, d time.Duration)  {}
func (n *NoopSink) BufferSizeUpdate(size int)                                             {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                        {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                             {}
func (n *NoopSink) EmitError()                                                            {}
func (n *NoopSink) AnalyticsWriteError()                                                  {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                     {}
func (n *NoopSink) LeaderAcquired()                                                       {}
func (n *NoopSink) LeaderLost(reason string)                                              {}
