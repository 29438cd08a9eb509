package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past identifications",
	Long: `List recent identifications recorded in the local history database.

Examples:
  plantsage history
  plantsage history --search monstera --limit 5
  plantsage history show 0b6f3c1e-8c4d-4f5a-9f53-3d9b2a1c7e10`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one identification",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var (
	historyLimit  int
	historySearch string
	historyJSON   bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false,
		"Print JSON instead of a table")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum number of entries")
	historyCmd.Flags().StringVarP(&historySearch, "search", "s", "",
		"Fuzzy search by common or scientific name")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var items []core.Identification
	if historySearch != "" {
		items, err = store.Search(cmd.Context(), historySearch, historyLimit)
	} else {
		items, err = store.List(cmd.Context(), historyLimit)
	}
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		if items == nil {
			items = []core.Identification{}
		}
		return writeJSON(out, items)
	}
	return render.HistoryTable(out, items)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		return writeJSON(out, rec)
	}
	card, err := render.NewCardRenderer(
		render.WithColor(colorEnabled(out)),
		render.WithWidth(terminalWidth(out)),
	).Render(rec.Plant, render.Meta{
		ID:       rec.ID,
		Model:    rec.Model,
		Cached:   rec.Cached,
		Duration: rec.Duration,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, card)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
