package web

import (
	"embed"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded frontend filesystem rooted at dist/.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}

// StaticHandler returns an http.Handler that serves the embedded upload UI.
// Paths that don't match a file get index.html; unknown /api/ paths are
// left to the API router.
func StaticHandler() (http.Handler, error) {
	distSubFS, err := DistFS()
	if err != nil {
		return nil, err
	}
	if _, err := fs.Stat(distSubFS, "index.html"); err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte(`{"error":"Method not allowed"}` + "\n"))
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if serveFile(w, distSubFS, name) {
			return
		}

		// SPA routing: serve index.html for non-existent paths
		serveFile(w, distSubFS, "index.html")
	}), nil
}

// serveFile serves a file from the filesystem and returns true if successful.
func serveFile(w http.ResponseWriter, fsys fs.FS, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		return false
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if name == "index.html" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	_, _ = io.Copy(w, f)
	return true
}
