package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/odonto/charting/internal/config"
	"github.com/odonto/charting/internal/domain/contribution"
	"github.com/odonto/charting/internal/domain/dentition"
	"github.com/odonto/charting/internal/domain/odontogram"
	"github.com/odonto/charting/internal/domain/patientprofile"
	"github.com/odonto/charting/internal/platform/auth"
	"github.com/odonto/charting/internal/platform/db"
	"github.com/odonto/charting/internal/platform/events"
	"github.com/odonto/charting/internal/platform/logging"
	"github.com/odonto/charting/internal/platform/metrics"
	"github.com/odonto/charting/internal/platform/middleware"
)

const bodyLimit = "1M"

// services are the domain entry points the router exposes.
type services struct {
	charts   *odontogram.Service
	profiles *patientprofile.Service
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logger
	logger := logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Change feed
	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()
	logger.Info().Str("backend", pub.Backend()).Msg("contribution events configured")

	ledger := contribution.NewService(contribution.NewRepoPG(pool))
	charts := odontogram.NewService(odontogram.NewRepoPG(pool), ledger, db.NewTransactor(pool))
	charts.SetPublisher(pub)
	charts.SetLogger(logger)
	profiles := patientprofile.NewService(patientprofile.NewRepoPG(pool))
	profiles.SetLogger(logger)

	e := newRouter(cfg, logger, pool, services{charts: charts, profiles: profiles})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newPublisher picks the change feed from EVENTS_BACKEND.
func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsRedis:
		return events.NewRedisPublisher(ctx, cfg.RedisURL, cfg.RedisChannel)
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "", config.EventsNone:
		return events.Nop{}, nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
}

func newRouter(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, svc services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-Match", "X-Request-ID", "X-Office-ID", "X-Office-Name"},
		ExposeHeaders: []string{"ETag", "Location", "X-Request-ID"},
	}))

	// Health and metrics stay outside authentication.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	dentition.NewHandler().RegisterRoutes(apiV1)
	odontogram.NewHandler(svc.charts).RegisterRoutes(apiV1)
	patientprofile.NewHandler(svc.profiles).RegisterRoutes(apiV1)

	return e
}
