package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rentwise/rentwise/internal/audit"
	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/events"
	"github.com/rentwise/rentwise/internal/observability/logger"
	"github.com/rentwise/rentwise/internal/observability/metrics"
	"github.com/rentwise/rentwise/internal/observability/tracing"
	"github.com/rentwise/rentwise/internal/occupancy"
	"github.com/rentwise/rentwise/internal/store/postgres"
	"github.com/rentwise/rentwise/internal/workerpool"
)

// app holds the wired dependencies of one command invocation
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *postgres.DB
	store   *postgres.Store
	service *occupancy.Service
	closers []func(context.Context) error
}

// newApp loads configuration and connects to the database. The occupancy
// service is only built when withService is set.
func newApp(ctx context.Context, withService bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})

	a := &app{cfg: cfg, logger: log}

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		log.Error("failed to initialize tracer", logger.Error(err))
		tracer, _ = tracing.New(ctx, tracing.Config{})
	}
	a.closers = append(a.closers, tracer.Shutdown)

	meters, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.MetricsEndpoint,
		Interval:       cfg.Observability.MetricsInterval,
	})
	if err != nil {
		log.Error("failed to initialize metrics", logger.Error(err))
		meters, _ = metrics.New(ctx, metrics.Config{})
	}
	a.closers = append(a.closers, meters.Shutdown)

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.db = db
	a.store = postgres.NewStore(db)
	a.closers = append(a.closers, func(context.Context) error {
		db.Close()
		return nil
	})

	if !withService {
		return a, nil
	}

	var emitter occupancy.Emitter = events.NewLogEmitter(log)
	if cfg.Redis.Addr != "" {
		re, err := events.NewRedisEmitter(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		emitter = re
		a.closers = append(a.closers, func(context.Context) error { return re.Close() })
	}

	pool := workerpool.New(workerpool.Config{
		Name:       "post-commit",
		MaxWorkers: cfg.Occupancy.DispatchWorkers,
		QueueSize:  cfg.Occupancy.DispatchQueue,
		Logger:     log,
	})
	// Registered last so it drains before Redis and the database close
	a.closers = append(a.closers, func(context.Context) error {
		return pool.Stop(cfg.Occupancy.DispatchStopTimeout)
	})

	a.service = occupancy.NewService(a.store, emitter, audit.NewSlogLogger(log),
		occupancy.WithLogger(log),
		occupancy.WithDispatcher(pool),
		occupancy.WithTracer(tracer.Tracer(occupancy.InstrumentationScope)),
		occupancy.WithMeter(meters.Meter(occupancy.InstrumentationScope)),
		occupancy.WithTxTimeout(cfg.Occupancy.TxTimeout),
		occupancy.WithLeaseDefaults(occupancy.LeaseDefaults{
			TermMonths:  cfg.Occupancy.DefaultLeaseMonths,
			TenancyType: occupancy.TenancyType(cfg.Occupancy.DefaultTenancyType),
		}),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
