package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"actionplan/internal/attachment"
	"actionplan/internal/audit/extract"
	auditmetrics "actionplan/internal/audit/metrics"
	"actionplan/internal/audit/service"
	"actionplan/internal/audit/store"
	"actionplan/internal/events"
	"actionplan/internal/lock"
	"actionplan/internal/platform/config"
	"actionplan/internal/platform/postgres"
	"actionplan/internal/platform/redis"
	httptransport "actionplan/internal/transport/http"
	"actionplan/pkg/platform/circuit"
)

const eventBuffer = 256

type gateway interface {
	service.Gateway
	service.Transactor
}

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg        config.Server
	logger     *slog.Logger
	registry   *prometheus.Registry
	svc        *service.Service
	files      http.Handler
	health     map[string]httptransport.HealthCheck
	dispatcher *events.Dispatcher
	closers    []func()
}

// newApp connects the configured backends. Without DATABASE_URL, REDIS_URL or
// KAFKA_BROKERS it falls back to in-process implementations. When async is
// set, events are queued on a Dispatcher the caller must run.
func newApp(ctx context.Context, cfg config.Server, logger *slog.Logger, async bool) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		health:   make(map[string]httptransport.HealthCheck),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	layout := extract.DefaultLayout()
	if cfg.LayoutFile != "" {
		if layout, err = extract.LoadLayout(cfg.LayoutFile); err != nil {
			return nil, err
		}
	}

	gw, err := a.openGateway(ctx)
	if err != nil {
		return nil, err
	}
	a.health["gateway"] = gw.Ping

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(auditmetrics.New(a.registry)),
		service.WithLayout(layout),
		service.WithStrictLayout(cfg.StrictLayout),
		service.WithPartialMetadata(cfg.AllowPartialMetadata),
		service.WithGatewayTimeout(cfg.GatewayTimeout),
		service.WithLockTTL(cfg.LockTTL),
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithLocker(locker))

	publisher, err := a.openPublisher(async)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithPublisher(publisher))

	files, err := attachment.NewFileStore(cfg.AttachmentDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	a.files = files.Handler()
	opts = append(opts, service.WithFileStore(files))

	a.svc = service.New(gw, gw, opts...)
	return a, nil
}

func (a *app) openGateway(ctx context.Context) (gateway, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), nil
	}
	db, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := store.Migrate(ctx, db); err != nil {
		return nil, err
	}
	a.registry.MustRegister(collectors.NewDBStatsCollector(db, "actionplan"))
	return store.NewPostgres(db), nil
}

func (a *app) openLocker(ctx context.Context) (service.Locker, error) {
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return lock.NewMemory(), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.health["redis"] = client.Health
	return lock.NewRedis(client), nil
}

func (a *app) openPublisher(async bool) (service.Publisher, error) {
	fallback := events.NewLogPublisher(a.logger)
	if len(a.cfg.KafkaBrokers) == 0 {
		return fallback, nil
	}
	kp, err := events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic,
		events.WithLogger(a.logger),
		events.WithFallback(fallback),
		events.WithBreaker(circuit.New("kafka")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	a.closers = append(a.closers, kp.Close)
	a.health["kafka"] = kp.Ping
	if !async {
		return kp, nil
	}
	a.dispatcher = events.NewDispatcher(kp, eventBuffer, a.logger)
	return a.dispatcher, nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
