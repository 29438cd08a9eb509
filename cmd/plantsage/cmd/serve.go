package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/plantsage/internal/api"
	"github.com/hugo-lorenzo-mato/plantsage/internal/config"
	"github.com/hugo-lorenzo-mato/plantsage/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
	"github.com/hugo-lorenzo-mato/plantsage/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web app",
	Long: `Start the PlantSage web server with the embedded upload page.

The server exposes POST /api/identify and POST /api/feedback, the history
endpoints, an event stream at /api/events, /health and Prometheus metrics.

Examples:
  # Start with defaults (localhost:8080)
  plantsage serve

  # Listen on all interfaces, port 3000
  plantsage serve --host 0.0.0.0 --port 3000

  # Reload log level and notify clients when the config file changes
  plantsage serve --watch-config`,
	RunE: runServe,
}

var (
	serveHost        string
	servePort        int
	serveNoCORS      bool
	serveWatchConfig bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default from config: localhost)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default from config: 8080)")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")
	serveCmd.Flags().BoolVar(&serveWatchConfig, "watch-config", false,
		"Watch the config file and apply log level changes live")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, cleanup, err := newWebServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if serveWatchConfig {
		watchConfig(loader, logger, server)
	}

	logger.Info("server starting",
		"addr", server.Addr(),
		"model", cfg.Gemini.Model,
		"model_configured", cfg.ModelConfigured(),
		"cache", cfg.Cache.Backend,
		"history", cfg.History.Enabled,
		"feedback", cfg.FeedbackSender(),
	)

	for _, w := range collectSystem(ctx, cfg).Warnings(diagnostics.DefaultThresholds()) {
		logger.Warn("host resources", "warning", w)
	}

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newWebServer builds the full HTTP stack from cfg and the serve flags.
func newWebServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*web.Server, func(), error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	bus := events.New(100)

	deps, err := buildDeps(ctx, cfg, depsOptions{logger: logger, metrics: m, bus: bus})
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	cleanup := func() {
		bus.Close()
		if err := deps.Close(); err != nil {
			logger.Warn("closing resources", "error", err)
		}
	}

	apiOpts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithFeedback(deps.Feedback),
		api.WithThrottle(api.Throttle{
			Limit:          cfg.Server.MaxConcurrent,
			Backlog:        cfg.Server.MaxBacklog,
			BacklogTimeout: cfg.Server.BacklogTimeout,
		}),
	}
	if deps.History != nil {
		apiOpts = append(apiOpts, api.WithHistory(deps.History))
	}
	if b, ok := deps.Model.(api.BreakerStater); ok {
		apiOpts = append(apiOpts, api.WithBreaker(b))
	}
	apiServer := api.NewServer(deps.Identify, apiOpts...)

	webOpts := []web.ServerOption{web.WithEventBus(bus)}
	if m != nil {
		webOpts = append(webOpts, web.WithMetrics(m))
	}
	return web.New(webConfig(cfg), apiServer, logger, webOpts...), cleanup, nil
}

// webConfig maps config to web.Config, letting explicit flags win.
func webConfig(cfg *config.Config) web.Config {
	wc := web.DefaultConfig()
	wc.Host = cfg.Server.Host
	wc.Port = cfg.Server.Port
	wc.EnableCORS = cfg.Server.EnableCORS
	wc.CORSOrigins = cfg.Server.CORSOrigins
	wc.ServeStatic = cfg.Server.ServeUI
	wc.MetricsPath = cfg.Metrics.Path
	if cfg.Server.ReadTimeout > 0 {
		wc.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		wc.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout > 0 {
		wc.IdleTimeout = cfg.Server.IdleTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		wc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	if cfg.Server.RequestTimeout > 0 {
		wc.RequestTimeout = cfg.Server.RequestTimeout
	}
	if !cfg.Metrics.Enabled {
		wc.MetricsPath = ""
	}

	if serveHost != "" {
		wc.Host = serveHost
	}
	if servePort != 0 {
		wc.Port = servePort
	}
	if serveNoCORS {
		wc.EnableCORS = false
	}
	return wc
}

// watchConfig applies log level changes and tells connected clients.
// Settings that shape the server itself still need a restart.
func watchConfig(loader *config.Loader, logger *logging.Logger, server *web.Server) {
	loader.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		logger.Info("config reloaded", "file", loader.ConfigFile(), "log_level", cfg.Log.Level)
		server.Notify("config_reloaded", map[string]interface{}{
			"log_level":        cfg.Log.Level,
			"model":            cfg.Gemini.Model,
			"model_configured": cfg.ModelConfigured(),
		})
	})
}
