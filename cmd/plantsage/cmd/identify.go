package cmd

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/plantsage/internal/clip"
	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/fsutil"
	"github.com/hugo-lorenzo-mato/plantsage/internal/identify"
	"github.com/hugo-lorenzo-mato/plantsage/internal/render"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image|->",
	Short: "Identify a plant from an image file",
	Long: `Identify a plant from a photo and print a care card.

Use "-" to read the image from standard input.

Examples:
  plantsage identify monstera.jpg
  cat leaf.png | plantsage identify - --json
  plantsage identify fern.webp --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

var (
	identifyJSON    bool
	identifyCopy    bool
	identifyNoCache bool
)

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().BoolVar(&identifyJSON, "json", false,
		"Print the result as JSON")
	identifyCmd.Flags().BoolVar(&identifyCopy, "copy", false,
		"Copy the result to the clipboard")
	identifyCmd.Flags().BoolVar(&identifyNoCache, "no-cache", false,
		"Skip the result cache and always ask the model")
}

// identifyOutput is the JSON shape printed by --json.
type identifyOutput struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Cached     bool           `json:"cached"`
	DurationMS int64          `json:"duration_ms"`
	Result     core.PlantInfo `json:"result"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	data, err := fsutil.ReadFileLimited(args[0], cmd.InOrStdin(), int64(cfg.Identify.MaxImageBytes))
	if errors.Is(err, fsutil.ErrTooLarge) {
		return core.ErrTooLarge(core.CodeImageTooLarge, identify.TooLargeMessage(cfg.Identify.MaxImageBytes))
	}
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	deps, err := buildDeps(cmd.Context(), cfg, depsOptions{logger: logger})
	if err != nil {
		return err
	}
	defer deps.Close()

	res, err := deps.Identify.Identify(cmd.Context(), identify.Request{
		Image:     base64.StdEncoding.EncodeToString(data),
		SkipCache: identifyNoCache,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	text, err := formatIdentification(out, res)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, text); err != nil {
		return err
	}

	if identifyCopy {
		copyText := render.Markdown(res.Plant, render.Meta{Model: res.Model})
		if identifyJSON {
			copyText = text
		}
		result, err := clip.WriteAll(copyText)
		if err != nil {
			return fmt.Errorf("copying result: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), result.Describe())
	}
	return nil
}

func formatIdentification(out io.Writer, res *identify.Result) (string, error) {
	if identifyJSON {
		data, err := json.MarshalIndent(identifyOutput{
			ID:         res.ID,
			Model:      res.Model,
			Cached:     res.Cached,
			DurationMS: res.Duration.Milliseconds(),
			Result:     res.Plant,
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding result: %w", err)
		}
		return string(data) + "\n", nil
	}

	r := render.NewCardRenderer(
		render.WithColor(colorEnabled(out)),
		render.WithWidth(terminalWidth(out)),
	)
	return r.Render(res.Plant, render.Meta{
		ID:       res.ID,
		Model:    res.Model,
		Cached:   res.Cached,
		Duration: res.Duration,
	})
}
