package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hospitalos/patientflow/internal/api/router"
	"github.com/hospitalos/patientflow/internal/appointments"
	"github.com/hospitalos/patientflow/internal/board"
	appconfig "github.com/hospitalos/patientflow/internal/config"
	"github.com/hospitalos/patientflow/internal/consultations"
	"github.com/hospitalos/patientflow/internal/doctors"
	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/internal/hospital"
	"github.com/hospitalos/patientflow/internal/notify"
	"github.com/hospitalos/patientflow/internal/observability/metrics"
	"github.com/hospitalos/patientflow/internal/patients"
	"github.com/hospitalos/patientflow/internal/queue"
	"github.com/hospitalos/patientflow/internal/reporting"
	"github.com/hospitalos/patientflow/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting patientflow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Separate database/sql handle for the reporting aggregates so the
	// dashboard never competes with the intake path for pool slots.
	reportDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open reporting db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = reportDB.Close() }()
	reportDB.SetMaxOpenConns(4)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	queueMetrics := metrics.NewQueueMetrics(registry)

	// Stores and repositories.
	queueStore := queue.NewStore(pool)
	patientsRepo := patients.NewRepository(pool)
	doctorsRepo := doctors.NewRepository(pool)
	consultationsRepo := consultations.NewRepository(pool)
	appointmentsRepo := appointments.NewRepository(pool)
	notifyStore := notify.NewStore(pool)
	outbox := events.NewOutboxStore(pool)
	hospitalStore := hospital.NewStore(pool, redisClient, cfg.HospitalConfigCacheTTL, hospital.Config{
		QueuePrefix:         cfg.DefaultQueuePrefix,
		MaxQueuePerDay:      cfg.DefaultMaxQueuePerDay,
		CallIntervalMinutes: cfg.DefaultCallIntervalMinutes,
	}, logger)

	// Queue core.
	assigner := queue.NewAssigner(queueStore, patientsRepo, doctorsRepo, hospitalStore, outbox, queueMetrics, logger)
	tracker := queue.NewTracker(queueStore, hospitalStore)
	machine := queue.NewStatusMachine(queueStore, doctorsRepo, outbox, queueMetrics, logger)

	// Outbox fanout: in-app/email notifications plus the waiting-room board.
	hub := board.NewHub(logger)
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails will be logged only")
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifySvc := notify.NewService(notifyStore, patientsRepo, emailSender, logger)
	deliverer := events.NewDeliverer(outbox, events.Fanout(notifySvc, board.NewRelay(hub, logger)), logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	tokenIssuer := appointments.NewTokenIssuer(cfg.CheckinTokenSecret, 24*time.Hour)

	routerCfg := &router.Config{
		Logger:               logger,
		QueueHandler:         queue.NewHandler(assigner, tracker, machine, queueStore, logger),
		ConsultationsHandler: consultations.NewHandler(consultationsRepo, assigner, logger),
		AppointmentsHandler:  appointments.NewHandler(appointmentsRepo, assigner, tokenIssuer, logger),
		NotifyHandler:        notify.NewHandler(notifyStore, logger),
		BoardHandler:         board.NewHandler(hub, logger),
		HospitalHandler:      hospital.NewHandler(hospitalStore, logger),
		DoctorsHandler:       doctors.NewHandler(doctorsRepo, logger),
		PatientsHandler:      patients.NewHandler(patientsRepo, logger),
		ReportingHandler:     reporting.NewHandler(reporting.NewReporter(reportDB), logger),
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthJWTSecret:        cfg.AuthJWTSecret,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		IntakeRateLimit:      cfg.IntakeRateLimit,
		IntakeRateBurst:      cfg.IntakeRateBurst,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
