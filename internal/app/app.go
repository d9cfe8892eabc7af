package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prostokit/excursions/internal/auth"
	"github.com/prostokit/excursions/internal/config"
	"github.com/prostokit/excursions/internal/domain"
	"github.com/prostokit/excursions/internal/event"
	handler "github.com/prostokit/excursions/internal/handler/http"
	"github.com/prostokit/excursions/internal/repository/postgres"
	"github.com/prostokit/excursions/internal/service"
	"github.com/prostokit/excursions/migrations"
	"github.com/prostokit/excursions/pkg/database"
	"github.com/prostokit/excursions/pkg/health"
	"github.com/prostokit/excursions/pkg/kafka"
	"github.com/prostokit/excursions/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// App assembles and runs the service.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	producer *kafka.Producer
	server   *http.Server

	shutdownTracer func(context.Context) error
}

// New builds the application: configuration, logging, tracing, storage,
// messaging, the session service and the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)

	// Seed the role reference table so registration never races a missing row.
	for _, role := range domain.AllRoles() {
		if err := roleRepo.Ensure(ctx, role); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed role %s: %w", role, err)
		}
	}

	var (
		producer  *kafka.Producer
		publisher event.Publisher = event.NoopPublisher{}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewPublisher(producer, logger)
	} else {
		logger.Warn("kafka brokers not configured, events disabled")
	}

	codec := auth.NewCodec(cfg.JWTSecret, cfg.JWTAccessExpiry)
	sessions := service.NewSessionService(
		userRepo, roleRepo, tokenRepo,
		codec, cfg.RefreshTokenExpiry,
		publisher, logger,
	)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", pool.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:       sessions,
		Health:         healthHandler,
		Logger:         logger,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		server:         server,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Run serves HTTP until the context is canceled, then shuts down cleanly.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server listening",
			slog.String("addr", a.server.Addr),
			slog.String("environment", a.cfg.Environment),
		)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.shutdown()
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	if err := a.shutdownTracer(ctx); err != nil {
		a.logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
		}
	}

	a.pool.Close()
	a.logger.Info("shutdown complete")

	return nil
}
