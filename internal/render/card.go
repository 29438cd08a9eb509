package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

// DefaultWidth is the word-wrap width used when the terminal size is unknown.
const DefaultWidth = 80

// CardRenderer turns plant cards into styled terminal output.
type CardRenderer struct {
	width  int
	styled bool
}

// CardOption configures a CardRenderer.
type CardOption func(*CardRenderer)

// WithWidth sets the word-wrap width.
func WithWidth(width int) CardOption {
	return func(r *CardRenderer) {
		if width > 0 {
			r.width = width
		}
	}
}

// WithColor enables or disables ANSI styling.
func WithColor(enabled bool) CardOption {
	return func(r *CardRenderer) {
		r.styled = enabled
	}
}

// NewCardRenderer returns a renderer with colors on and DefaultWidth wrapping.
func NewCardRenderer(opts ...CardOption) *CardRenderer {
	r := &CardRenderer{width: DefaultWidth, styled: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render formats one identification.
func (r *CardRenderer) Render(info core.PlantInfo, meta Meta) (string, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithStyles(r.style()),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := tr.Render(Markdown(info, meta))
	if err != nil {
		return "", fmt.Errorf("rendering plant card: %w", err)
	}
	return out, nil
}

func (r *CardRenderer) style() ansi.StyleConfig {
	if !r.styled {
		return styles.NoTTYStyleConfig
	}
	s := styles.DraculaStyleConfig
	s.H1 = ansi.StyleBlock{
		StylePrimitive: ansi.StylePrimitive{
			Prefix: " ",
			Suffix: " ",
			Color:  stringPtr("#E5E7EB"),
			// Leaf green header band.
			BackgroundColor: stringPtr("#15803D"),
			Bold:            boolPtr(true),
		},
	}
	s.Emph = ansi.StylePrimitive{
		Color:  stringPtr("#86EFAC"),
		Italic: boolPtr(true),
	}
	s.Code = ansi.StyleBlock{
		StylePrimitive: ansi.StylePrimitive{
			Color:           stringPtr("229"),
			BackgroundColor: stringPtr(""),
		},
	}
	return s
}

func stringPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
