// Package leaderelection provides Postgres advisory lock-based leader election.
//
// Replicas that share a Postgres registry each keep their own notified set,
// so only the lock holder may dispatch reminders. Followers keep serving the
// API and re-try the lock every retry interval.
//
// The lock is session-scoped and held for the lifetime of a dedicated
// connection; there is no renewal or TTL. If the connection dies, Postgres
// releases the lock server-side. The heartbeat ping only detects local
// connection death so the leader steps down promptly.
package leaderelection

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsSink defines the interface for recording leader election metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string) // reason: "shutdown", "conn_lost"
}

// Elector manages leader election using a Postgres advisory lock.
type Elector struct {
	db                *sql.DB
	lockKey           int64
	retryInterval     time.Duration // follower: how often to attempt lock acquisition
	heartbeatInterval time.Duration // leader: how often to ping dedicated connection
	metrics           MetricsSink   // optional, nil = disabled

	leading atomic.Bool
}

func New(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration) *Elector {
	return &Elector{
		db:                db,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Leading reports whether this instance currently holds the lock.
func (e *Elector) Leading() bool {
	return e.leading.Load()
}

// Run starts the election loop. It blocks until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	logger := log.With().Str("component", "leader").Int64("lock_key", e.lockKey).Logger()
	logger.Info().
		Dur("retry", e.retryInterval).
		Dur("heartbeat", e.heartbeatInterval).
		Msg("starting election loop")

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("election loop stopped")
			return
		}

		reason := e.runOnce(ctx)

		if ctx.Err() != nil {
			logger.Info().Msg("election loop stopped")
			return
		}
		if reason != "" {
			logger.Warn().Str("reason", reason).Dur("retry_in", e.retryInterval).Msg("lost leadership")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce attempts to acquire the advisory lock and hold it.
// Returns the reason leadership was lost ("" if lock was not acquired).
func (e *Elector) runOnce(ctx context.Context) string {
	logger := log.With().Str("component", "leader").Int64("lock_key", e.lockKey).Logger()

	// Advisory lock is session-scoped: must use a dedicated connection.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to acquire dedicated connection")
		return ""
	}
	defer conn.Close()

	var acquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.lockKey).Scan(&acquired)
	if err != nil {
		logger.Error().Err(err).Msg("advisory lock query failed")
		return ""
	}
	if !acquired {
		logger.Debug().Msg("lock held by another instance")
		return ""
	}

	e.leading.Store(true)
	logger.Info().Msg("acquired advisory lock, dispatching reminders")
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	reason := e.holdLock(ctx, conn)

	e.leading.Store(false)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}

	logger.Info().Msg("released advisory lock")
	return reason
}

// holdLock blocks while pinging the dedicated connection.
// Returns the reason the lock was lost.
func (e *Elector) holdLock(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Error().Str("component", "leader").Err(err).Msg("dedicated connection ping failed")
				return "conn_lost"
			}
		}
	}
}
