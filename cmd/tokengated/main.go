// Command tokengated runs the token lifecycle engine behind the HTTP
// wire contract: login, refresh, logout, identity echo and an
// admin-only cleanup trigger, plus Prometheus metrics.
//
// Configuration comes from a YAML file (-config) overridden by
// TOKENGATE_* environment variables, e.g. TOKENGATE_STORE_BACKEND=postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	tokengate "github.com/mfreitas/tokengate"
	"github.com/mfreitas/tokengate/metrics/export/prometheus"
	"github.com/mfreitas/tokengate/middleware"
	"github.com/mfreitas/tokengate/store"
	"github.com/mfreitas/tokengate/store/pgstore"
	"github.com/mfreitas/tokengate/store/redisstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tokengated:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- storage ----
	var (
		tokenStore  store.Store
		redisClient *redis.Client
	)
	switch cfg.StoreBackend {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer func() { _ = redisClient.Close() }()

		rs := redisstore.New(redisClient, "rt")
		if _, err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		tokenStore = rs
	case "postgres":
		ps, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer func() { _ = ps.Close() }()

		if err := ps.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		tokenStore = ps
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	provider, err := newStaticProvider(cfg.StaticUsers)
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}
	if len(cfg.StaticUsers) == 0 {
		logger.Warn("no static users configured, every login will fail")
	}

	// ---- engine ----
	engineCfg := engineConfig(cfg)

	builder := tokengate.New().
		WithConfig(engineCfg).
		WithStore(tokenStore).
		WithUserProvider(provider).
		WithMetricsEnabled(cfg.MetricsEnabled)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(tokengate.NewJSONWriterSink(os.Stdout))
	}
	if redisClient != nil {
		builder = builder.WithRedis(redisClient)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	janitor := tokengate.NewJanitor(engine, cfg.CleanupInterval)
	janitor.Start(ctx)
	defer janitor.Stop()

	// ---- HTTP ----
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(engine, logger, cfg.MetricsEnabled),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(engine *tokengate.Engine, logger *zap.Logger, metricsEnabled bool) http.Handler {
	a := &api{engine: engine, log: logger}
	guard := middleware.Guard(engine)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/me", a.me)
			r.Post("/logout", a.logout)
			r.Post("/logout-all", a.logoutAll)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(guard)
		r.Use(middleware.RequireRole("admin"))
		r.Post("/cleanup-tokens", a.cleanup)
	})

	if metricsEnabled {
		r.Method(http.MethodGet, "/metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func engineConfig(cfg *serverConfig) tokengate.Config {
	var ec tokengate.Config

	ec.JWT.SigningMethod = cfg.SigningMethod
	ec.JWT.AccessTTL = cfg.AccessTTL
	ec.JWT.Issuer = cfg.Issuer
	if cfg.SigningMethod == "hs256" {
		ec.JWT.PrivateKey = []byte(cfg.HMACKey)
	}

	ec.Refresh.TTL = cfg.RefreshTTL
	ec.Refresh.RedisPrefix = "rt"

	ec.Security.EnableLoginThrottle = cfg.LoginThrottle
	ec.Security.EnableRefreshThrottle = cfg.RefreshThrottle
	ec.Security.RevokeFamilyOnReuse = cfg.RevokeFamily
	if cfg.LoginThrottle {
		ec.Security.MaxLoginAttempts = 5
		ec.Security.LoginCooldownDuration = 15 * time.Minute
	}
	if cfg.RefreshThrottle {
		ec.Security.MaxRefreshAttempts = 10
		ec.Security.RefreshCooldownDuration = time.Minute
	}

	ec.Cleanup.Interval = cfg.CleanupInterval

	ec.Audit.Enabled = cfg.AuditEnabled
	ec.Audit.BufferSize = 1024
	ec.Audit.DropIfFull = true

	ec.Metrics.Enabled = cfg.MetricsEnabled
	ec.Metrics.EnableLatencyHistograms = cfg.MetricsEnabled

	return ec
}

func newLogger(level string, pretty bool) (*zap.Logger, error) {
	var zc zap.Config
	if pretty {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("parse level %q: %w", level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("app", "tokengated")), nil
}
