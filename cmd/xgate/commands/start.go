package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/internal/telemetry"
	"github.com/marmos91/xgate/pkg/api"
	"github.com/marmos91/xgate/pkg/config"
)

var (
	daemonize bool
	pidFile   string
	logFile   string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the xgate gateway",
	Long: `Start the xgate SSH session gateway with the specified configuration.

By default, the gateway runs in the foreground so it can be managed by a
process supervisor. Use --daemon to detach and run in the background.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/xgate/config.yaml.

Examples:
  # Start in foreground (default)
  xgate start

  # Start in background
  xgate start --daemon

  # Start with custom config file
  xgate start --config /etc/xgate/config.yaml

  # Start with environment variable overrides
  XGATE_LOGGING_LEVEL=DEBUG xgate start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&daemonize, "daemon", "d", false, "Run in background (daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/xgate/xgate.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/xgate/xgate.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if daemonize {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "xgate",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "xgate",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("xgate - SSH session gateway")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics FIRST (before creating components that record metrics)
	metricsResult := config.InitializeMetrics(cfg)

	// Initialize the user store for file-backed password authentication
	store, err := cfg.CreateIdentityStore()
	if err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}
	logger.Info("User store loaded", "path", store.Path(), "users", len(store.List()))

	// Assemble the authentication engine from the configured backends
	engine, err := cfg.CreateAuthEngine(store, metricsResult.Gateway)
	if err != nil {
		return fmt.Errorf("failed to initialize authentication: %w", err)
	}

	// Build the gateway with the upstream handoff handler
	handler := cfg.CreateUpstreamHandler(metricsResult.Gateway)
	gw, err := cfg.CreateGateway(engine, handler, metricsResult.Gateway)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	logger.Info("Gateway configured",
		"listen", cfg.Gateway.Listen,
		"password_backend", cfg.Auth.PasswordBackend,
		"allow_proxy_start", cfg.Gateway.AllowProxyStart)
	if cfg.Gateway.Upstream != "" {
		logger.Info("Upstream configured", "upstream", cfg.Gateway.Upstream)
	} else {
		logger.Info("No upstream configured, sessions are served by spawned servers only")
	}

	// Start the metrics server if enabled
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.Start(); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := metricsResult.Server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error", "error", err)
			}
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Start the control API server if enabled
	var apiDone chan error
	if cfg.API.IsEnabled() {
		apiServer, err := api.NewServer(cfg.API, store, gw, Version)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		logger.Info("API server enabled", "port", apiServer.Port())
		apiDone = make(chan error, 1)
		go func() {
			apiDone <- apiServer.Start(ctx)
		}()
	} else {
		logger.Info("API server disabled")
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start the gateway in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- gw.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for the gateway to drain active sessions
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	// Drain the API server after the gateway is down
	if apiDone != nil {
		cancel()
		if err := <-apiDone; err != nil {
			logger.Error("API server error", "error", err)
		}
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
