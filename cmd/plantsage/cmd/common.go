package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/cache"
	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/gemini"
	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/history"
	"github.com/hugo-lorenzo-mato/plantsage/internal/config"
	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/feedback"
	"github.com/hugo-lorenzo-mato/plantsage/internal/identify"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
)

// loadConfig loads and validates configuration using the global viper,
// which carries the persistent flag bindings.
func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, loader, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

// appDeps holds the services shared by serve and identify.
type appDeps struct {
	Model    core.PlantModel
	Identify *identify.Service
	Feedback *feedback.Service
	History  *history.Store
	closers  []func() error
}

type depsOptions struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	bus     *events.EventBus
}

// buildDeps wires the model, cache, history and feedback sender from cfg.
// A missing API key is not an error; identification then fails per request.
func buildDeps(ctx context.Context, cfg *config.Config, o depsOptions) (*appDeps, error) {
	log := o.logger
	if log == nil {
		log = logging.NewNop()
	}
	d := &appDeps{}

	if cfg.ModelConfigured() {
		model, err := newModel(ctx, cfg, log, o.metrics)
		if err != nil {
			return nil, err
		}
		d.Model = model
	} else {
		log.Warn("no Gemini API key configured; identification requests will fail")
	}

	resultCache, closeCache, err := cache.New(ctx, cacheOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating %s cache: %w", cfg.Cache.Backend, err)
	}
	d.closers = append(d.closers, closeCache)

	identifyOpts := []identify.Option{
		identify.WithLogger(log),
		identify.WithMaxImageBytes(cfg.Identify.MaxImageBytes),
		identify.WithTimeout(cfg.Gemini.Timeout),
		identify.WithCacheTTL(cfg.Cache.TTL),
		identify.WithMetrics(o.metrics),
		identify.WithEventBus(o.bus),
	}
	if resultCache != nil {
		identifyOpts = append(identifyOpts, identify.WithCache(resultCache))
	}

	feedbackOpts := []feedback.Option{feedback.WithLogger(log), feedback.WithEventBus(o.bus)}

	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("opening history: %w", err)
		}
		d.History = store
		d.closers = append(d.closers, store.Close)
		identifyOpts = append(identifyOpts, identify.WithHistory(store))
		feedbackOpts = append(feedbackOpts, feedback.WithHistory(store))
	}

	sender, err := newFeedbackSender(cfg, log)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	d.Identify = identify.NewService(d.Model, identifyOpts...)
	d.Feedback = feedback.NewService(sender, feedbackOpts...)
	return d, nil
}

// newModel builds the Gemini client. Tests replace it with a fake.
var newModel = func(ctx context.Context, cfg *config.Config, log *logging.Logger, m *metrics.Metrics) (core.PlantModel, error) {
	model, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		Temperature: float32(cfg.Gemini.Temperature),
		Breaker: gemini.BreakerConfig{
			Enabled:          cfg.Breaker.Enabled,
			MaxFailures:      uint32(cfg.Breaker.MaxFailures),
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			HalfOpenRequests: uint32(cfg.Breaker.HalfOpenRequests),
		},
	}, gemini.WithLogger(log), gemini.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	return model, nil
}

func newFeedbackSender(cfg *config.Config, log *logging.Logger) (core.FeedbackSender, error) {
	if cfg.FeedbackSender() != "resend" {
		return feedback.NewLogSender(log), nil
	}
	s, err := feedback.NewResendSender(feedback.ResendConfig{
		APIKey:  cfg.Feedback.Resend.APIKey,
		From:    cfg.Feedback.Resend.From,
		To:      cfg.Feedback.Resend.To,
		BaseURL: cfg.Feedback.Resend.BaseURL,
		Timeout: cfg.Feedback.Resend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating resend sender: %w", err)
	}
	return s, nil
}

// Close releases the cache and history store.
func (d *appDeps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

func cacheOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Backend:    cfg.Cache.Backend,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Redis: cache.RedisConfig{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			KeyPrefix:   cfg.Cache.Redis.KeyPrefix,
			DialTimeout: cfg.Cache.Redis.DialTimeout,
		},
	}
}

// openHistory opens the history store for read-only commands.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (set history.enabled: true)")
	}
	return history.NewStore(cfg.History.Path)
}

// colorEnabled reports whether w is a terminal and --no-color is unset.
func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when unknown.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
