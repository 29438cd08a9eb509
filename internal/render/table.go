package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// TimeLayout is the fixed-width timestamp used in history listings.
const TimeLayout = "2006-01-02 15:04"

var (
	colorLeaf   = lipgloss.Color("#10B981")
	colorMuted  = lipgloss.Color("#9CA3AF")
	colorAccent = lipgloss.Color("#F59E0B")
	colorBorder = lipgloss.Color("#374151")
)

type column struct {
	title string
	width int
}

var historyColumns = []column{
	{"ID", 8},
	{"WHEN", len(TimeLayout)},
	{"COMMON NAME", 24},
	{"SCIENTIFIC NAME", 26},
	{"MODEL", 18},
	{"", 6},
}

// HistoryTable writes a table of past identifications to w. The lipgloss
// renderer is bound to w, so color is dropped when w is not a terminal.
func HistoryTable(w io.Writer, items []core.Identification) error {
	re := lipgloss.NewRenderer(w)

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, re.NewStyle().Foreground(colorMuted).Render("No identifications yet."))
		return err
	}

	header := re.NewStyle().Bold(true).Foreground(colorLeaf)
	rule := re.NewStyle().Foreground(colorBorder)
	name := re.NewStyle().Bold(true)
	scientific := re.NewStyle().Italic(true)
	muted := re.NewStyle().Foreground(colorMuted)
	badge := re.NewStyle().Foreground(colorAccent)

	var b strings.Builder
	cells := make([]string, len(historyColumns))
	for i, c := range historyColumns {
		cells[i] = header.Render(pad(c.title, c.width))
	}
	b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " ") + "\n")

	total := 0
	for _, c := range historyColumns {
		total += c.width
	}
	total += 2 * (len(historyColumns) - 1)
	b.WriteString(rule.Render(strings.Repeat("─", total)) + "\n")

	for _, item := range items {
		cached := ""
		if item.Cached {
			cached = "cached"
		}
		row := []string{
			muted.Render(pad(shortID(item.ID), historyColumns[0].width)),
			muted.Render(pad(formatTime(item.CreatedAt), historyColumns[1].width)),
			name.Render(pad(orUnknown(item.Plant.CommonName), historyColumns[2].width)),
			scientific.Render(pad(orUnknown(item.Plant.ScientificName), historyColumns[3].width)),
			muted.Render(pad(item.Model, historyColumns[4].width)),
			badge.Render(pad(cached, historyColumns[5].width)),
		}
		b.WriteString(strings.TrimRight(strings.Join(row, "  "), " ") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}

// pad truncates or right-pads s to exactly width display cells.
func pad(s string, width int) string {
	if lipgloss.Width(s) > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r)+"…") > width {
			r = r[:len(r)-1]
		}
		return string(r) + "…"
	}
	return s + strings.Repeat(" ", width-lipgloss.Width(s))
}
