package config

import "os"

// DefaultConfigYAML contains the default configuration written by
// `plantsage init`.
const DefaultConfigYAML = `# PlantSage Configuration
#
# Values not specified here use built-in defaults. Every key can be
# overridden with a PLANTSAGE_ environment variable, e.g.
# PLANTSAGE_SERVER_PORT=9090. GOOGLE_API_KEY and RESEND_API_KEY are
# honored for the API keys.

log:
  level: info
  # auto | text | json
  format: auto

server:
  host: localhost
  port: 8080
  enable_cors: true
  cors_origins: ["*"]
  request_timeout: 75s
  # Concurrent identifications before requests queue; 0 disables the limit.
  max_concurrent: 8
  max_backlog: 32
  backlog_timeout: 30s
  serve_ui: true

gemini:
  # Prefer GOOGLE_API_KEY in the environment over storing the key here.
  api_key: ""
  model: gemini-2.5-flash
  temperature: 0.4
  timeout: 60s

identify:
  # Maximum decoded image size in bytes.
  max_image_bytes: 5242880

# Stops calling the model after repeated upstream failures.
breaker:
  enabled: true
  max_failures: 5
  open_timeout: 30s
  half_open_requests: 1

cache:
  # none | memory | redis
  backend: memory
  ttl: 24h
  max_entries: 1000
  redis:
    addr: localhost:6379
    db: 0
    key_prefix: "plantsage:identify:"

history:
  enabled: true
  path: .plantsage/history.db

feedback:
  # auto | resend | log
  # auto uses Resend when an API key and recipients are configured.
  sender: auto
  resend:
    from: "PlantSage <onboarding@resend.dev>"
    to: []

metrics:
  enabled: true
  path: /metrics
`

// filePerm returns the mode of the existing file at path, or 0600.
func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o600
}
