package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/docslot/docslot/internal/config"
	"github.com/docslot/docslot/internal/domain/scheduling"
	"github.com/docslot/docslot/internal/platform/db"
	"github.com/docslot/docslot/internal/platform/lock"
	"github.com/docslot/docslot/internal/platform/middleware"
	"github.com/docslot/docslot/internal/platform/mongodb"
)

const version = "0.1.0"

func newLogger(dev bool, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	if dev {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(lvl).With().Timestamp().Logger()
	}
	return logger
}

// store is an opened datastore: the repositories plus what health checks and
// shutdown need.
type store struct {
	driver       string
	doctors      scheduling.DoctorRepository
	appointments scheduling.AppointmentRepository
	pinger       db.Pinger
	stats        func() interface{}
	close        func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &store{
			driver:       config.DriverMongo,
			doctors:      scheduling.NewDoctorRepoMongo(database),
			appointments: scheduling.NewAppointmentRepoMongo(database),
			pinger:       db.PingFunc(mongodb.Pinger(client)),
			close:        func() { _ = client.Disconnect(context.Background()) },
		}, nil
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &store{
			driver:       config.DriverPostgres,
			doctors:      scheduling.NewDoctorRepoPG(pool),
			appointments: scheduling.NewAppointmentRepoPG(pool),
			pinger:       pool,
			stats:        func() interface{} { return db.GetPoolStats(pool) },
			close:        pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newLocker returns a Redis-backed locker when REDIS_URL is set so several
// server instances share booking locks. The close func is never nil.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewMemoryLocker(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(client, cfg.LockTTL), func() { _ = client.Close() }, nil
}

func newService(cfg *config.Config, st *store, locker lock.Locker, logger zerolog.Logger) *scheduling.Service {
	return scheduling.NewService(st.doctors, st.appointments, locker, scheduling.Options{
		SlotInterval: cfg.SlotInterval(),
		MinDuration:  cfg.MinDurationMins,
		MaxDuration:  cfg.MaxDurationMins,
		HorizonDays:  cfg.BookingHorizonDays,
		LockWait:     cfg.LockWait,
		Logger:       logger.With().Str("component", "scheduling").Logger(),
	})
}

// newEcho builds the HTTP server. healthDB may be nil.
func newEcho(cfg *config.Config, svc *scheduling.Service, logger zerolog.Logger, healthDB echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if healthDB != nil {
		e.GET("/health/db", healthDB)
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))
	scheduling.NewHandler(svc).RegisterRoutes(api)

	return e
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.IsDev(), cfg.LogLevel)
	log.Logger = logger
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to connect to datastore")
	}
	defer st.close()
	logger.Info().Str("driver", st.driver).Msg("connected to datastore")

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeLocker()
	if _, ok := locker.(*lock.RedisLocker); ok {
		logger.Info().Dur("ttl", cfg.LockTTL).Msg("using redis booking locks")
	}

	svc := newService(cfg, st, locker, logger)
	e := newEcho(cfg, svc, logger, db.HealthHandler(st.driver, st.pinger, st.stats))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
