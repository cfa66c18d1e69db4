package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// minPollInterval is the shortest accepted scheduler cadence.
const minPollInterval = time.Second

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	checkDuration := func(field, s string, min time.Duration) {
		d, err := time.ParseDuration(s)
		switch {
		case err != nil:
			add(field, fmt.Sprintf("invalid duration: %v", err))
		case d <= 0:
			add(field, "must be positive")
		case d < min:
			add(field, fmt.Sprintf("must be at least %s", min))
		}
	}

	checkDuration("APPOINTMENT_POLL_INTERVAL", cfg.AppointmentPollIntervalStr, minPollInterval)
	checkDuration("CALENDAR_POLL_INTERVAL", cfg.CalendarPollIntervalStr, minPollInterval)
	checkDuration("GATEWAY_TIMEOUT", cfg.GatewayTimeoutStr, 0)
	checkDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr, 0)

	if cfg.LeadTimeMinutes <= 0 {
		add("LEAD_TIME_MINUTES", "must be positive")
	}

	if _, err := cfg.Location(); err != nil {
		add("TIMEZONE", fmt.Sprintf("unknown location %q", cfg.Timezone))
	}

	switch cfg.Registry {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			add("DATABASE_URL", "required when REGISTRY=postgres")
		}
		checkDuration("DB_OP_TIMEOUT", cfg.DBOpTimeoutStr, 0)
		if cfg.LeaderElectionEnabled {
			checkDuration("LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr, 0)
			checkDuration("LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr, 0)
		}
	default:
		add("REGISTRY", fmt.Sprintf("must be 'memory' or 'postgres', got %q", cfg.Registry))
	}

	if cfg.LeaderElectionEnabled && cfg.Registry != "postgres" {
		add("LEADER_ELECTION_ENABLED", "requires REGISTRY=postgres")
	}

	switch cfg.Gateway {
	case "log":
	case "mqtt":
		if cfg.MQTTBrokerURL == "" {
			add("MQTT_BROKER_URL", "required when GATEWAY=mqtt")
		}
		if cfg.MQTTQoS > 2 {
			add("MQTT_QOS", fmt.Sprintf("must be 0, 1 or 2, got %d", cfg.MQTTQoS))
		}
	case "webhook":
		if cfg.WebhookURL == "" {
			add("WEBHOOK_URL", "required when GATEWAY=webhook")
		}
	default:
		add("GATEWAY", fmt.Sprintf("must be 'log', 'mqtt' or 'webhook', got %q", cfg.Gateway))
	}

	if cfg.CircuitBreakerThreshold > 0 {
		checkDuration("CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr, 0)
	}

	if cfg.RedisAddr != "" {
		switch cfg.AnalyticsWindowStr {
		case "1m", "5m", "1h":
		default:
			add("ANALYTICS_WINDOW", fmt.Sprintf("must be 1m, 5m or 1h, got %q", cfg.AnalyticsWindowStr))
		}
		checkDuration("ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr, 0)
	}

	if cfg.RateLimitEnabled {
		checkDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindowStr, 0)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL", fmt.Sprintf("must be debug, info, warn or error, got %q", cfg.LogLevel))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		add("LOG_FORMAT", fmt.Sprintf("must be 'json' or 'console', got %q", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
