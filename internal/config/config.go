package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the easyremind application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// Timezone names the location appointment and event wall-clock times are
	// read in. Empty or "Local" means the host zone.
	Timezone string `json:"timezone"`

	LeadTimeMinutes            int           `json:"lead_time_minutes"`
	AppointmentPollInterval    time.Duration `json:"-"`
	AppointmentPollIntervalStr string        `json:"appointment_poll_interval"`
	CalendarPollInterval       time.Duration `json:"-"`
	CalendarPollIntervalStr    string        `json:"calendar_poll_interval"`

	// Registry: "memory" or "postgres".
	Registry             string        `json:"registry"`
	DatabaseURL          string        `json:"database_url"`
	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBOpTimeout          time.Duration `json:"-"`
	DBOpTimeoutStr       string        `json:"db_op_timeout"`

	// LeaderElectionEnabled makes replicas sharing a Postgres registry take
	// turns: only the advisory lock holder dispatches reminders.
	LeaderElectionEnabled bool `json:"leader_election_enabled"`
	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`
	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`
	// LeaderHeartbeatInterval pings the dedicated connection to detect local
	// connection death.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`

	// Gateway: "log", "mqtt" or "webhook".
	Gateway           string        `json:"gateway"`
	GatewayTimeout    time.Duration `json:"-"`
	GatewayTimeoutStr string        `json:"gateway_timeout"`

	MQTTBrokerURL string `json:"mqtt_broker_url"`
	MQTTClientID  string `json:"mqtt_client_id"`
	MQTTTopic     string `json:"mqtt_topic"`
	MQTTUsername  string `json:"mqtt_username,omitempty"`
	MQTTPassword  string `json:"mqtt_password,omitempty"`
	MQTTQoS       int    `json:"mqtt_qos"`

	WebhookURL      string `json:"webhook_url,omitempty"`
	WebhookSecret   string `json:"webhook_secret,omitempty"`
	WebhookProbeURL string `json:"webhook_probe_url,omitempty"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// RedisAddr enables fired-notification analytics when set.
	RedisAddr             string        `json:"redis_addr,omitempty"`
	AnalyticsWindow       time.Duration `json:"-"`
	AnalyticsWindowStr    string        `json:"analytics_window"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	EventBusBufferSize int `json:"eventbus_buffer_size"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	CORSAllowOrigins []string `json:"cors_allow_origins"`

	RateLimitEnabled   bool          `json:"rate_limit_enabled"`
	RateLimitRequests  int           `json:"rate_limit_requests"`
	RateLimitWindow    time.Duration `json:"-"`
	RateLimitWindowStr string        `json:"rate_limit_window"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

const defaultLeaderLockKey = 738462

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		Timezone:                   os.Getenv("TIMEZONE"),
		AppointmentPollIntervalStr: os.Getenv("APPOINTMENT_POLL_INTERVAL"),
		CalendarPollIntervalStr:    os.Getenv("CALENDAR_POLL_INTERVAL"),
		Registry:                   os.Getenv("REGISTRY"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBOpTimeoutStr:             os.Getenv("DB_OP_TIMEOUT"),
		LeaderElectionEnabled:      os.Getenv("LEADER_ELECTION_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
		Gateway:                    os.Getenv("GATEWAY"),
		GatewayTimeoutStr:          os.Getenv("GATEWAY_TIMEOUT"),
		MQTTBrokerURL:              os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:               os.Getenv("MQTT_CLIENT_ID"),
		MQTTTopic:                  os.Getenv("MQTT_TOPIC"),
		MQTTUsername:               os.Getenv("MQTT_USERNAME"),
		MQTTPassword:               os.Getenv("MQTT_PASSWORD"),
		WebhookURL:                 os.Getenv("WEBHOOK_URL"),
		WebhookSecret:              os.Getenv("WEBHOOK_SECRET"),
		WebhookProbeURL:            os.Getenv("WEBHOOK_PROBE_URL"),
		CircuitBreakerCooldownStr:  os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		AnalyticsWindowStr:         os.Getenv("ANALYTICS_WINDOW"),
		AnalyticsRetentionStr:      os.Getenv("ANALYTICS_RETENTION"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		MetricsPort:                os.Getenv("METRICS_PORT"),
		RateLimitEnabled:           os.Getenv("RATE_LIMIT_ENABLED") != "false",
		RateLimitWindowStr:         os.Getenv("RATE_LIMIT_WINDOW"),
		LogLevel:                   strings.ToLower(os.Getenv("LOG_LEVEL")),
		LogFormat:                  strings.ToLower(os.Getenv("LOG_FORMAT")),
	}

	cfg.LeadTimeMinutes = intFromEnv("LEAD_TIME_MINUTES", 15, true)
	cfg.DBMaxOpenConns = intFromEnv("DB_MAX_OPEN_CONNS", 10, false)
	cfg.DBMaxIdleConns = intFromEnv("DB_MAX_IDLE_CONNS", 5, false)
	cfg.MQTTQoS = intFromEnv("MQTT_QOS", 1, true)
	cfg.CircuitBreakerThreshold = intFromEnv("CIRCUIT_BREAKER_THRESHOLD", 5, true)
	cfg.EventBusBufferSize = intFromEnv("EVENTBUS_BUFFER_SIZE", 100, false)
	cfg.RateLimitRequests = intFromEnv("RATE_LIMIT_REQUESTS", 120, false)
	cfg.LeaderLockKey = int64(intFromEnv("LEADER_LOCK_KEY", defaultLeaderLockKey, false))

	if origins := os.Getenv("CORS_ALLOW_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowOrigins = append(cfg.CORSAllowOrigins, o)
			}
		}
	}
	if len(cfg.CORSAllowOrigins) == 0 {
		cfg.CORSAllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.Registry == "" {
		cfg.Registry = "memory"
	}
	if cfg.Gateway == "" {
		cfg.Gateway = "log"
	}
	if cfg.MQTTBrokerURL == "" {
		cfg.MQTTBrokerURL = "tcp://localhost:1883"
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "easyremind"
	}
	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = "easyremind/notifications"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	defaultStr(&cfg.HTTPShutdownTimeoutStr, "10s")
	defaultStr(&cfg.AppointmentPollIntervalStr, "60s")
	defaultStr(&cfg.CalendarPollIntervalStr, "20s")
	defaultStr(&cfg.DBConnMaxLifetimeStr, "30m")
	defaultStr(&cfg.DBOpTimeoutStr, "5s")
	defaultStr(&cfg.LeaderRetryIntervalStr, "5s")
	defaultStr(&cfg.LeaderHeartbeatIntervalStr, "2s")
	defaultStr(&cfg.GatewayTimeoutStr, "10s")
	defaultStr(&cfg.CircuitBreakerCooldownStr, "2m")
	defaultStr(&cfg.AnalyticsWindowStr, "1m")
	defaultStr(&cfg.AnalyticsRetentionStr, "24h")
	defaultStr(&cfg.RateLimitWindowStr, "60s")

	// Parse durations; validation is handled separately by Validate().
	parseDuration(cfg.HTTPShutdownTimeoutStr, &cfg.HTTPShutdownTimeout)
	parseDuration(cfg.AppointmentPollIntervalStr, &cfg.AppointmentPollInterval)
	parseDuration(cfg.CalendarPollIntervalStr, &cfg.CalendarPollInterval)
	parseDuration(cfg.DBConnMaxLifetimeStr, &cfg.DBConnMaxLifetime)
	parseDuration(cfg.DBOpTimeoutStr, &cfg.DBOpTimeout)
	parseDuration(cfg.LeaderRetryIntervalStr, &cfg.LeaderRetryInterval)
	parseDuration(cfg.LeaderHeartbeatIntervalStr, &cfg.LeaderHeartbeatInterval)
	parseDuration(cfg.GatewayTimeoutStr, &cfg.GatewayTimeout)
	parseDuration(cfg.CircuitBreakerCooldownStr, &cfg.CircuitBreakerCooldown)
	parseDuration(cfg.AnalyticsWindowStr, &cfg.AnalyticsWindow)
	parseDuration(cfg.AnalyticsRetentionStr, &cfg.AnalyticsRetention)
	parseDuration(cfg.RateLimitWindowStr, &cfg.RateLimitWindow)

	return cfg
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LeadTime is LeadTimeMinutes as a duration.
func (c Config) LeadTime() time.Duration {
	return time.Duration(c.LeadTimeMinutes) * time.Minute
}

// intFromEnv reads a non-negative integer. Zero is kept only when allowZero
// is set; otherwise, like malformed input, it falls back to def.
func intFromEnv(key string, def int, allowZero bool) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := parseInt(s)
	if err != nil || (n == 0 && !allowZero) {
		log.Warn().
			Str("component", "config").
			Str("key", key).
			Str("value", s).
			Int("default", def).
			Msg("invalid integer, using default")
		return def
	}
	return n
}

func defaultStr(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func parseDuration(s string, dst *time.Duration) {
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.MQTTPassword = maskSecret(c.MQTTPassword)
	masked.WebhookSecret = maskSecret(c.WebhookSecret)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
