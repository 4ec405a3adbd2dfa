package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/jsonguard/pkg/api"
	"github.com/platinummonkey/jsonguard/pkg/config"
	"github.com/platinummonkey/jsonguard/pkg/engine"
	"github.com/platinummonkey/jsonguard/pkg/httputil"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/platinummonkey/jsonguard/pkg/registry"
	"github.com/platinummonkey/jsonguard/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelCfg := cfg.OTelConfig()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}
	if providers != nil {
		shutdown.Register("opentelemetry", providers.Shutdown)
	}

	var (
		metrics  *observability.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}
	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return err
		}
	}

	compilerCfg, err := cfg.CompilerConfig()
	if err != nil {
		return err
	}
	eng := engine.New(engine.Config{
		Compiler:       compilerCfg,
		Cache:          cfg.CacheConfig(),
		Logger:         logger,
		Metrics:        metrics,
		OTelMetrics:    otelMetrics,
		DisableNotices: !cfg.Engine.Notices,
	})

	health := observability.NewHealthChecker(version)
	var reg *registry.Registry
	runErr := make(chan error, 1)
	if cfg.Registry.Enabled {
		source, err := storage.Open(ctx, cfg.Registry.Source, metrics)
		if err != nil {
			return err
		}
		shutdown.Register("schema source", func(context.Context) error { return source.Close() })

		switch s := storage.Unwrap(source).(type) {
		case *storage.PostgresSource:
			health.AddCheck("postgres", observability.SQLCheck(s.DB()))
		case *storage.RedisSource:
			health.AddCheck("redis", observability.RedisCheck(s.Client()))
		}

		reg = registry.New(source, eng, registry.Options{
			Logger:   registryLogger(cfg.LogLevel()),
			Metrics:  metrics,
			Debounce: cfg.Registry.Debounce,
		})
		health.AddCheck("registry", reg.ReadyCheck())

		go func() {
			defer observability.RecoverPanic(logger, "registry")
			runErr <- reg.Run(ctx, registry.RunOptions{
				Watch:    cfg.Registry.Watch,
				Schedule: cfg.Registry.Schedule,
			})
		}()
	}

	var limiter *httputil.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = httputil.NewRateLimiter(httputil.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			Burst:             cfg.Server.RateBurst,
		})
	}

	server := api.NewServer(api.Options{
		Engine:       eng,
		Registry:     reg,
		Health:       health,
		Metrics:      metrics,
		Gatherer:     gatherer,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimiter:  limiter,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.Register("http server", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting jsonguard server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	return waitForExit(ctx, shutdown, serveErr, runErr)
}

// exitManager is the part of the shutdown manager the serve loop drives
type exitManager interface {
	Shutdown(ctx context.Context) error
	Wait(ctx context.Context) error
}

// waitForExit blocks until the HTTP server fails, the registry fails or ctx is
// cancelled. A registry that stops cleanly leaves the server running.
func waitForExit(ctx context.Context, sm exitManager, serveErr, runErr <-chan error) error {
	for {
		select {
		case err := <-serveErr:
			_ = sm.Shutdown(context.Background())
			return err
		case err := <-runErr:
			if err != nil {
				_ = sm.Shutdown(context.Background())
				return err
			}
			runErr = nil
		case <-ctx.Done():
			return sm.Wait(ctx)
		}
	}
}

func registryLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level.String())
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
