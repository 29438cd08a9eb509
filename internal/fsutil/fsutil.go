package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StdinPath is the path argument that selects standard input.
const StdinPath = "-"

// ErrTooLarge is returned when input exceeds the requested limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// ReadFileScoped reads a file by opening a root at the file's directory.
// This scopes access to the intended directory and avoids path traversal.
func ReadFileScoped(path string) ([]byte, error) {
	return ReadFileLimited(path, nil, 0)
}

// ReadFileLimited reads at most maxBytes from path, or from stdin when path is "-".
// A maxBytes of zero disables the limit. Oversized input returns ErrTooLarge.
func ReadFileLimited(path string, stdin io.Reader, maxBytes int64) ([]byte, error) {
	if path == StdinPath {
		if stdin == nil {
			stdin = os.Stdin
		}
		return readLimited(stdin, maxBytes)
	}

	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	if path == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if maxBytes > 0 {
		if info, err := file.Stat(); err == nil && info.Size() > maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, base, info.Size())
		}
	}
	return readLimited(file, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
