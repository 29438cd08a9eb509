package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/cache"
	"github.com/hugo-lorenzo-mato/plantsage/internal/config"
	"github.com/hugo-lorenzo-mato/plantsage/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and backing services",
	Long:  "Verify the config, the Gemini API key, the cache backend, the history database and feedback delivery.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

func (s checkStatus) icon() string {
	switch s {
	case checkOK:
		return "✓"
	case checkWarn:
		return "○"
	default:
		return "✗"
	}
}

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Checking PlantSage setup...")
	fmt.Fprintln(out)

	cfg, loader, err := loadConfig()
	if err != nil {
		printChecks(out, []checkResult{{"config", checkFail, err.Error()}})
		return fmt.Errorf("configuration is invalid")
	}

	source := loader.ConfigFile()
	if source == "" {
		source = "defaults and environment"
	}
	results := []checkResult{{"config", checkOK, source}}
	results = append(results, doctorChecks(cmd.Context(), cfg)...)
	printChecks(out, results)

	fmt.Fprintln(out)
	for _, r := range results {
		if r.status == checkFail {
			return fmt.Errorf("%s check failed", r.name)
		}
	}
	fmt.Fprintln(out, "All required checks passed")
	return nil
}

func doctorChecks(ctx context.Context, cfg *config.Config) []checkResult {
	var results []checkResult

	if cfg.ModelConfigured() {
		results = append(results, checkResult{"gemini", checkOK, "API key set, model " + cfg.Gemini.Model})
	} else {
		results = append(results, checkResult{"gemini", checkFail,
			"no API key; set GOOGLE_API_KEY or PLANTSAGE_GEMINI_API_KEY"})
	}

	results = append(results, checkCache(ctx, cfg))

	if cfg.History.Enabled {
		store, err := openHistory(cfg)
		if err != nil {
			results = append(results, checkResult{"history", checkFail, err.Error()})
		} else {
			_ = store.Close()
			results = append(results, checkResult{"history", checkOK, cfg.History.Path})
		}
	} else {
		results = append(results, checkResult{"history", checkWarn, "disabled"})
	}

	switch cfg.FeedbackSender() {
	case "resend":
		results = append(results, checkResult{"feedback", checkOK, fmt.Sprintf("resend to %d recipient(s)", len(cfg.Feedback.Resend.To))})
	default:
		results = append(results, checkResult{"feedback", checkWarn, "logged only; set RESEND_API_KEY and feedback.resend.to to email it"})
	}

	if cfg.Metrics.Enabled {
		results = append(results, checkResult{"metrics", checkOK, cfg.Metrics.Path})
	} else {
		results = append(results, checkResult{"metrics", checkWarn, "disabled"})
	}

	return append(results, checkSystem(ctx, cfg))
}

// collectSystem is replaced in tests to avoid depending on the host.
var collectSystem = func(ctx context.Context, cfg *config.Config) diagnostics.SystemStats {
	return diagnostics.NewCollector(cfg.History.Path).Collect(ctx)
}

func checkSystem(ctx context.Context, cfg *config.Config) checkResult {
	stats := collectSystem(ctx, cfg)
	if warnings := stats.Warnings(diagnostics.DefaultThresholds()); len(warnings) > 0 {
		return checkResult{"system", checkWarn, strings.Join(warnings, "; ")}
	}
	return checkResult{"system", checkOK, stats.Summary()}
}

func checkCache(ctx context.Context, cfg *config.Config) checkResult {
	if cfg.Cache.Backend == cache.BackendNone || cfg.Cache.Backend == "" {
		return checkResult{"cache", checkWarn, "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, closeCache, err := cache.New(ctx, cacheOptions(cfg))
	if err != nil {
		return checkResult{"cache", checkFail, err.Error()}
	}
	_ = closeCache()

	detail := cfg.Cache.Backend
	if cfg.Cache.Backend == cache.BackendRedis {
		detail += " at " + cfg.Cache.Redis.Addr
	}
	return checkResult{"cache", checkOK, detail}
}

func printChecks(out io.Writer, results []checkResult) {
	for _, r := range results {
		fmt.Fprintf(out, "  %s %-9s %s\n", r.status.icon(), r.name, r.detail)
	}
}
