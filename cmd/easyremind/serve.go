package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/analytics"
	"github.com/djlord-it/easy-remind/internal/api"
	"github.com/djlord-it/easy-remind/internal/circuitbreaker"
	"github.com/djlord-it/easy-remind/internal/config"
	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/leaderelection"
	"github.com/djlord-it/easy-remind/internal/logging"
	"github.com/djlord-it/easy-remind/internal/metrics"
	"github.com/djlord-it/easy-remind/internal/notify"
	"github.com/djlord-it/easy-remind/internal/policy"
	"github.com/djlord-it/easy-remind/internal/registry"
	"github.com/djlord-it/easy-remind/internal/scheduler"
	"github.com/djlord-it/easy-remind/internal/store/postgres"
	"github.com/djlord-it/easy-remind/internal/transport/channel"
)

func runServe(ctx context.Context) error {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		return withCode(exitInvalidConfig, fmt.Errorf("configuration error: %w", err))
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return withCode(exitInvalidConfig, err)
	}
	logConfigWarnings(&cfg)

	logger := log.With().Str("component", "easyremind").Logger()

	loc, err := cfg.Location()
	if err != nil {
		return withCode(exitInvalidConfig, err)
	}

	// Registries
	var (
		appointments registry.Registry[domain.Appointment]
		events       registry.Registry[domain.CalendarEvent]
		db           *sqlx.DB
	)
	switch cfg.Registry {
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		logger.Info().
			Int("max_open", cfg.DBMaxOpenConns).
			Int("max_idle", cfg.DBMaxIdleConns).
			Dur("max_lifetime", cfg.DBConnMaxLifetime).
			Msg("db pool configured")

		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		appointments = postgres.NewAppointmentStore(db, cfg.DBOpTimeout)
		events = postgres.NewEventStore(db, cfg.DBOpTimeout)
	default:
		appointments = registry.NewMemory(func(a domain.Appointment) string { return a.ID })
		events = registry.NewMemory(func(e domain.CalendarEvent) string { return e.ID })
	}

	// Metrics
	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			logger.Info().Str("port", cfg.MetricsPort).Str("path", cfg.MetricsPath).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	// Gateway
	gateway, closeGateway, err := buildGateway(cfg, sink)
	if err != nil {
		return err
	}

	// Fired-event bus and analytics
	var (
		bus       *channel.EventBus
		recorder  *analytics.Recorder
		redisSink *analytics.RedisSink
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		redisSink = analytics.NewRedisSink(redisClient, analytics.Config{
			Enabled:   true,
			Window:    cfg.AnalyticsWindow,
			Retention: cfg.AnalyticsRetention,
		})
		bus = channel.NewEventBus(cfg.EventBusBufferSize, channel.WithMetrics(sink))
		recorder = analytics.NewRecorder(redisSink).WithMetrics(sink)
		logger.Info().Str("redis", cfg.RedisAddr).Dur("window", cfg.AnalyticsWindow).Msg("analytics enabled")
	}

	// Schedulers
	apptSched := scheduler.New[domain.Appointment](
		scheduler.Config{Name: string(domain.SourceAppointments), Interval: cfg.AppointmentPollInterval},
		appointments,
		policy.NewLeadTime(cfg.LeadTime(), loc),
		gateway,
	).WithMetrics(sink)

	calSched := scheduler.New[domain.CalendarEvent](
		scheduler.Config{Name: string(domain.SourceCalendar), Interval: cfg.CalendarPollInterval},
		events,
		policy.NewExactMinute(loc),
		gateway,
	).WithMetrics(sink)

	if bus != nil {
		apptSched.WithEmitter(bus)
		calSched.WithEmitter(bus)
	}

	var elector *leaderelection.Elector
	if cfg.LeaderElectionEnabled && db != nil {
		elector = leaderelection.New(db.DB, cfg.LeaderLockKey, cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval).
			WithMetrics(sink)
		apptSched.WithGate(elector)
		calSched.WithGate(elector)
	}

	// HTTP API
	handler := api.NewHandler(appointments, events, gateway, loc).
		WithWatchers(apptSched, calSched).
		WithLeadTime(cfg.LeadTime())
	if redisSink != nil {
		handler.WithStats(redisSink)
	}
	if db != nil {
		handler.WithHealthChecker(db)
	}

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(handler, api.RouterOptions{
			CORSAllowOrigins:  cfg.CORSAllowOrigins,
			RateLimitEnabled:  cfg.RateLimitEnabled,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
		}),
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// Separate contexts so shutdown can stop producers before consumers.
	recorderCtx, cancelRecorder := context.WithCancel(context.Background())
	defer cancelRecorder()
	var recorderWg sync.WaitGroup
	if recorder != nil {
		recorderWg.Add(1)
		go func() {
			defer recorderWg.Done()
			recorder.Run(recorderCtx, bus.Channel())
		}()
	}

	electorCtx, cancelElector := context.WithCancel(context.Background())
	defer cancelElector()
	var electorWg sync.WaitGroup
	if elector != nil {
		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(electorCtx)
		}()
	}

	apptSched.Start(context.Background())
	calSched.Start(context.Background())

	logger.Info().
		Str("registry", cfg.Registry).
		Str("gateway", gateway.Name()).
		Bool("leader_election", elector != nil).
		Str("timezone", loc.String()).
		Dur("lead_time", cfg.LeadTime()).
		Msg("started")

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info().Msg("shutting down")

	// Phase 1: Stop schedulers (no new notifications or events)
	logger.Info().Msg("stopping schedulers...")
	apptSched.Stop()
	calSched.Stop()
	logger.Info().Msg("schedulers stopped")

	// Release the advisory lock so a standby takes over without waiting for
	// the connection to time out.
	if elector != nil {
		cancelElector()
		electorWg.Wait()
		logger.Info().Msg("leader election stopped")
	}

	// Phase 2: Stop analytics recorder (drains buffered events)
	if recorder != nil {
		logger.Info().Msg("stopping analytics recorder (draining events)...")
		cancelRecorder()
		recorderWg.Wait()
		logger.Info().Msg("analytics recorder stopped")
	}

	// Phase 3: Stop HTTP server with graceful shutdown
	logger.Info().Msg("stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("http server stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		logger.Info().Msg("stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
		logger.Info().Msg("metrics server stopped")
	}

	// Phase 5: Release the gateway connection
	closeGateway()

	logger.Info().Msg("stopped")
	return nil
}

// buildGateway returns the configured gateway, guarded by a circuit breaker
// when CIRCUIT_BREAKER_THRESHOLD > 0, and a func that releases it.
func buildGateway(cfg config.Config, sink metrics.Sink) (notify.Gateway, func(), error) {
	var (
		gw      notify.Gateway
		closeFn = func() {}
	)

	switch cfg.Gateway {
	case "mqtt":
		m := notify.NewMQTTGateway(notify.MQTTConfig{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			QoS:       byte(cfg.MQTTQoS),
			Timeout:   cfg.GatewayTimeout,
		}).WithMetrics(sink)
		gw, closeFn = m, m.Close
	case "webhook":
		gw = notify.NewWebhookGateway(notify.WebhookConfig{
			URL:      cfg.WebhookURL,
			Secret:   cfg.WebhookSecret,
			ProbeURL: cfg.WebhookProbeURL,
			Timeout:  cfg.GatewayTimeout,
		}).WithMetrics(sink)
	case "log":
		gw = notify.NewLogGateway()
	default:
		return nil, nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		cb := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		return notify.WithBreaker(gw, cb), closeFn, nil
	}
	return gw, closeFn, nil
}
