package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/config"
)

// logConfigWarnings flags configurations that run but are probably not what
// the operator wants.
func logConfigWarnings(cfg *config.Config) {
	logger := log.With().Str("component", "config").Logger()

	if cfg.Registry == "memory" {
		logger.Warn().Msg("REGISTRY=memory: appointments and events are lost on restart")
	}
	if cfg.Registry == "postgres" && !cfg.LeaderElectionEnabled {
		logger.Info().Msg("LEADER_ELECTION_ENABLED=false: run a single replica, every replica dispatches reminders")
	}

	switch cfg.Gateway {
	case "log":
		logger.Info().Msg("GATEWAY=log: reminders are only written to the process log")
	case "webhook":
		if cfg.WebhookSecret == "" {
			logger.Warn().Msg("WEBHOOK_SECRET is empty: receivers cannot verify X-EasyRemind-Signature")
		}
	}

	if cfg.Gateway != "log" && cfg.CircuitBreakerThreshold == 0 {
		logger.Info().Msg("CIRCUIT_BREAKER_THRESHOLD=0: circuit breaker disabled")
	}

	if !cfg.MetricsEnabled {
		logger.Warn().Msg("METRICS_ENABLED=false: scheduler ticks and dispatch failures are only visible in logs")
	}

	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not set: notification analytics disabled")
	}

	// Reminders fire at most one poll interval late; with a short lead the
	// window can be missed entirely.
	if cfg.AppointmentPollInterval >= cfg.LeadTime() && cfg.LeadTime() > 0 {
		logger.Warn().
			Dur("poll_interval", cfg.AppointmentPollInterval).
			Dur("lead_time", cfg.LeadTime()).
			Msg("APPOINTMENT_POLL_INTERVAL is not shorter than LEAD_TIME_MINUTES: reminders may be skipped")
	}
	if cfg.CalendarPollInterval > 30*time.Second {
		logger.Warn().
			Dur("poll_interval", cfg.CalendarPollInterval).
			Msg("CALENDAR_POLL_INTERVAL above 30s: exact-minute reminders may be skipped")
	}
}
