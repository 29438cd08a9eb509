// Package render formats identifications for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// Meta is the request metadata shown under a plant card.
type Meta struct {
	ID       string
	Model    string
	Cached   bool
	Duration time.Duration
}

// Markdown builds the plant card as markdown. Empty fields are shown as "Unknown".
func Markdown(info core.PlantInfo, meta Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", orUnknown(info.CommonName))
	fmt.Fprintf(&b, "*%s*", orUnknown(info.ScientificName))
	if info.Family != "" {
		fmt.Fprintf(&b, " · %s", info.Family)
	}
	b.WriteString("\n\n")

	b.WriteString("## Characteristics\n\n")
	field(&b, "Appearance", info.Characteristics.Appearance)
	field(&b, "Growth habit", info.Characteristics.GrowthHabit)
	field(&b, "Toxicity", info.Characteristics.Toxicity)
	b.WriteString("\n")

	b.WriteString("## Care\n\n")
	field(&b, "Light", info.Care.Light)
	field(&b, "Water", info.Care.Water)
	field(&b, "Soil", info.Care.Soil)

	if len(info.Facts) > 0 {
		b.WriteString("\n## Facts\n\n")
		for _, f := range info.Facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if line := metaLine(meta); line != "" {
		fmt.Fprintf(&b, "\n---\n\n%s\n", line)
	}
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "- **%s:** %s\n", label, orUnknown(value))
}

func metaLine(meta Meta) string {
	var parts []string
	if meta.Model != "" {
		parts = append(parts, "model `"+meta.Model+"`")
	}
	if meta.Cached {
		parts = append(parts, "cached")
	} else if meta.Duration > 0 {
		parts = append(parts, meta.Duration.Round(time.Millisecond).String())
	}
	if meta.ID != "" {
		parts = append(parts, "id `"+meta.ID+"`")
	}
	return strings.Join(parts, " · ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
