package clip

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func stubWriters(t *testing.T, native, osc error) {
	t.Helper()
	origNative, origOSC, origDir := nativeWriteAll, osc52WriteAll, tempDir
	t.Cleanup(func() {
		nativeWriteAll, osc52WriteAll, tempDir = origNative, origOSC, origDir
	})
	nativeWriteAll = func(string) error { return native }
	osc52WriteAll = func(string) error { return osc }
	tempDir = t.TempDir()
}

func TestWriteAll_Native(t *testing.T) {
	stubWriters(t, nil, errors.New("unused"))

	res, err := WriteAll("Monstera deliciosa")
	if err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if res.Method != MethodNative {
		t.Errorf("Method = %q, want %q", res.Method, MethodNative)
	}
}

func TestWriteAll_FallsBackToOSC52(t *testing.T) {
	stubWriters(t, errors.New("no display"), nil)

	res, err := WriteAll("text")
	if err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if res.Method != MethodOSC52 {
		t.Errorf("Method = %q, want %q", res.Method, MethodOSC52)
	}
}

func TestWriteAll_FallsBackToTempFile(t *testing.T) {
	stubWriters(t, errors.New("no display"), errors.New("not a terminal"))

	res, err := WriteAll("Ficus lyrata")
	if err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if res.Method != MethodFile {
		t.Fatalf("Method = %q, want %q", res.Method, MethodFile)
	}
	data, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("reading fallback file: %v", err)
	}
	if string(data) != "Ficus lyrata" {
		t.Errorf("file content = %q", data)
	}
	if !strings.Contains(res.Describe(), res.FilePath) {
		t.Errorf("Describe() = %q, want path", res.Describe())
	}
}

func TestWriteAll_Empty(t *testing.T) {
	stubWriters(t, nil, nil)

	if _, err := WriteAll(""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestWriteOSC52_NotTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "osc")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := writeOSC52(f, "text"); err == nil {
		t.Fatal("expected error for non-terminal writer")
	}
}
