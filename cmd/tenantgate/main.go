// Package main is the entry point for the TenantGate node.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/tenantgate/internal/auth"
	"github.com/vyrodovalexey/tenantgate/internal/authz"
	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/gateway"
	"github.com/vyrodovalexey/tenantgate/internal/health"
	"github.com/vyrodovalexey/tenantgate/internal/middleware"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
	"github.com/vyrodovalexey/tenantgate/internal/tenant"
	"github.com/vyrodovalexey/tenantgate/internal/upload"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// sweepInterval is how often background registries are swept for
// expired entries.
const sweepInterval = time.Minute

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("TENANTGATE_CONFIG_PATH", "configs/tenantgate.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("TENANTGATE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("TENANTGATE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("tenantgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting tenantgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", cfg.Listen),
		observability.Int("tenants", len(cfg.Tenants)),
		observability.String("session_backend", cfg.Sessions.Backend),
	)

	return cfg
}

// application holds all application components.
type application struct {
	config        *config.Config
	server        *http.Server
	metricsServer *http.Server
	tenants       *tenant.Cache
	sessions      session.Registry
	flows         *upload.FlowRegistry
	rateLimiter   *middleware.RateLimiter
	healthChecker *health.Checker
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	tenants, err := tenant.NewCache(context.Background(),
		tenant.NewStaticSource(cfg.Tenants),
		tenant.WithCacheLogger(logger))
	if err != nil {
		logger.Fatal("failed to build tenant cache", observability.Error(err))
	}

	sessions, err := session.NewRegistry(cfg.Sessions, logger)
	if err != nil {
		logger.Fatal("failed to create session registry", observability.Error(err))
	}

	if err := os.MkdirAll(cfg.TmpPath, 0o700); err != nil {
		logger.Fatal("failed to create temp directory", observability.Error(err))
	}
	if err := os.MkdirAll(cfg.AttachmentsPath, 0o700); err != nil {
		logger.Fatal("failed to create attachments directory", observability.Error(err))
	}

	flows := upload.NewFlowRegistry(cfg.TmpPath, time.Duration(cfg.UploadFlowTTL),
		upload.WithFlowRegistryLogger(logger))

	assembler := upload.NewAssembler(flows,
		upload.WithAssemblerLogger(logger),
		upload.WithAssemblerMetrics(upload.NewMetrics("tenantgate")))

	resolver := auth.NewResolver(sessions, cfg.APITokenLength,
		auth.WithResolverLogger(logger),
		auth.WithResolverMetrics(auth.NewMetrics("tenantgate")),
		auth.WithAPISession(session.NewAPISession()))

	gate := authz.NewGate(authz.WithGateLogger(logger))

	governor := middleware.NewGovernor(
		time.Duration(cfg.HandlerExecThreshold),
		time.Duration(cfg.SideChannelGuard),
		middleware.WithGovernorLogger(logger))

	pipeline := gateway.NewPipeline(tenants, resolver, gate,
		gateway.WithPipelineLogger(logger),
		gateway.WithPipelineAssembler(assembler),
		gateway.WithPipelineGovernor(governor),
		gateway.WithPipelineMetrics(gateway.NewMetrics("tenantgate")))

	mux := pipeline.Router(buildRoutes(cfg, assembler, sessions, gate, logger))

	var rateLimiter *middleware.RateLimiter
	var handler http.Handler = mux
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.PerClient,
			middleware.WithRateLimiterLogger(logger))
		handler = middleware.RateLimit(rateLimiter)(handler)
	}
	handler = middleware.BodyLimit(cfg.MaxBodySize, logger)(handler)
	handler = middleware.SecurityHeaders()(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Recovery(logger)(handler)

	healthChecker := health.NewChecker(version)
	healthChecker.RegisterCheck("sessions", func(ctx context.Context) error {
		_, err := sessions.Get(ctx, "readiness-probe")
		if err == session.ErrSessionNotFound || err == nil {
			return nil
		}
		return err
	})

	app := &application{
		config:        cfg,
		tenants:       tenants,
		sessions:      sessions,
		flows:         flows,
		rateLimiter:   rateLimiter,
		healthChecker: healthChecker,
		server: &http.Server{
			Addr:              cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.MetricsListen != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.Handle("/healthz", healthChecker.LivenessHandler())
		metricsMux.Handle("/readyz", healthChecker.ReadinessHandler())

		app.metricsServer = &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return app
}

// run starts the servers and background jobs, then blocks until a
// shutdown signal arrives.
func run(app *application, configPath string, logger observability.Logger) {
	go func() {
		logger.Info("http server listening", observability.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", observability.Error(err))
		}
	}()

	if app.metricsServer != nil {
		go func() {
			logger.Info("metrics server listening", observability.String("addr", app.metricsServer.Addr))
			if err := app.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", observability.Error(err))
			}
		}()
	}

	stopSweeper := startSweeper(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, stopSweeper, logger)
}

// startSweeper periodically evicts expired sessions and stale upload
// flows.
func startSweeper(app *application, logger observability.Logger) chan struct{} {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if n, err := app.sessions.Sweep(ctx); err != nil {
					logger.Error("session sweep failed", observability.Error(err))
				} else if n > 0 {
					logger.Debug("swept expired sessions", observability.Int("count", n))
				}
				cancel()

				app.flows.Sweep(time.Now())

				if app.rateLimiter != nil {
					app.rateLimiter.Sweep(time.Now())
				}
			}
		}
	}()

	return stop
}

// startConfigWatcher reloads the tenant table when the config file
// changes on disk.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading tenant table",
			observability.Int("tenants", len(newCfg.Tenants)))
		app.tenants.Replace(newCfg.Tenants)
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal and stops everything
// gracefully.
func waitForShutdown(app *application, watcher *config.Watcher, stopSweeper chan struct{}, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	close(stopSweeper)

	if watcher != nil {
		_ = watcher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", observability.Error(err))
	}
	if app.metricsServer != nil {
		_ = app.metricsServer.Shutdown(ctx)
	}

	app.flows.Close()
	_ = app.sessions.Close()

	logger.Info("shutdown complete")
}
