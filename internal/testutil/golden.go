package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// Golden compares rendered output with files under a testdata directory.
// Run tests with -update to rewrite the files.
type Golden struct {
	t   *testing.T
	dir string
}

// NewGolden creates a golden helper rooted at dir.
func NewGolden(t *testing.T, dir string) *Golden {
	return &Golden{t: t, dir: dir}
}

// AssertString compares actual with <dir>/<name>.golden, ignoring line
// ending and trailing whitespace differences.
func (g *Golden) AssertString(name, actual string) {
	g.t.Helper()

	path := filepath.Join(g.dir, name+".golden")
	if *update {
		if err := os.MkdirAll(g.dir, 0o755); err != nil {
			g.t.Fatalf("creating golden directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("writing golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		g.t.Fatalf("reading golden file %s: %v", path, err)
	}
	if normalize(actual) != normalize(string(want)) {
		g.t.Errorf("%s does not match golden file:\n--- want ---\n%s\n--- got ---\n%s", name, want, actual)
	}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x07]*\x07`)
	cardIDPattern   = regexp.MustCompile("id `[^`]+`")
	cardTimePattern = regexp.MustCompile(`\b\d+(\.\d+)?(ms|s)\b`)
)

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// ScrubCardMeta replaces the per-run identification id and duration in a
// plant card footer so cards compare stably.
func ScrubCardMeta(s string) string {
	s = cardIDPattern.ReplaceAllString(StripANSI(s), "id `[ID]`")
	return cardTimePattern.ReplaceAllString(s, "[DURATION]")
}
