package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration. A missing Gemini API key is
// not an error here: the server starts and reports it per request.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateGemini(&cfg.Gemini)
	v.validateIdentify(&cfg.Identify)
	v.validateBreaker(&cfg.Breaker)
	v.validateCache(&cfg.Cache)
	v.validateHistory(&cfg.History)
	v.validateFeedback(&cfg.Feedback)
	v.validateMetrics(&cfg.Metrics)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     cfg.ReadTimeout,
		"write_timeout":    cfg.WriteTimeout,
		"idle_timeout":     cfg.IdleTimeout,
		"shutdown_timeout": cfg.ShutdownTimeout,
		"request_timeout":  cfg.RequestTimeout,
	} {
		if d <= 0 {
			v.addError("server."+name, d, "must be positive")
		}
	}
	if cfg.MaxConcurrent < 0 {
		v.addError("server.max_concurrent", cfg.MaxConcurrent, "must be non-negative")
	}
	if cfg.MaxConcurrent > 0 && cfg.MaxBacklog < 0 {
		v.addError("server.max_backlog", cfg.MaxBacklog, "must be non-negative")
	}
	if cfg.EnableCORS && len(cfg.CORSOrigins) == 0 {
		v.addError("server.cors_origins", cfg.CORSOrigins, "at least one origin required when CORS is enabled")
	}
}

func (v *Validator) validateGemini(cfg *GeminiConfig) {
	if strings.TrimSpace(cfg.Model) == "" {
		v.addError("gemini.model", cfg.Model, "model required")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("gemini.temperature", cfg.Temperature, "must be between 0 and 2")
	}
	if cfg.Timeout <= 0 {
		v.addError("gemini.timeout", cfg.Timeout, "must be positive")
	}
}

func (v *Validator) validateIdentify(cfg *IdentifyConfig) {
	if cfg.MaxImageBytes <= 0 {
		v.addError("identify.max_image_bytes", cfg.MaxImageBytes, "must be positive")
	}
}

func (v *Validator) validateBreaker(cfg *BreakerConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.MaxFailures < 1 {
		v.addError("breaker.max_failures", cfg.MaxFailures, "must be at least 1")
	}
	if cfg.OpenTimeout <= 0 {
		v.addError("breaker.open_timeout", cfg.OpenTimeout, "must be positive")
	}
	if cfg.HalfOpenRequests < 1 {
		v.addError("breaker.half_open_requests", cfg.HalfOpenRequests, "must be at least 1")
	}
}

func (v *Validator) validateCache(cfg *CacheConfig) {
	switch cfg.Backend {
	case "none":
		return
	case "memory":
		if cfg.MaxEntries <= 0 {
			v.addError("cache.max_entries", cfg.MaxEntries, "must be positive")
		}
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			v.addError("cache.redis.addr", cfg.Redis.Addr, "address required")
		}
		if cfg.Redis.DB < 0 {
			v.addError("cache.redis.db", cfg.Redis.DB, "must be non-negative")
		}
	default:
		v.addError("cache.backend", cfg.Backend, "must be one of: none, memory, redis")
		return
	}
	if cfg.TTL < 0 {
		v.addError("cache.ttl", cfg.TTL, "must be non-negative")
	}
}

func (v *Validator) validateHistory(cfg *HistoryConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Path == "" {
		v.addError("history.path", cfg.Path, "path required when enabled")
	} else if !isValidPath(cfg.Path) {
		v.addError("history.path", cfg.Path, "invalid file path")
	}
}

func (v *Validator) validateFeedback(cfg *FeedbackConfig) {
	switch cfg.Sender {
	case "auto", "log":
	case "resend":
		if cfg.Resend.APIKey == "" {
			v.addError("feedback.resend.api_key", "", "API key required for the resend sender")
		}
		if len(cfg.Resend.To) == 0 {
			v.addError("feedback.resend.to", cfg.Resend.To, "at least one recipient required")
		}
	default:
		v.addError("feedback.sender", cfg.Sender, "must be one of: auto, resend, log")
	}
	for _, to := range cfg.Resend.To {
		if !strings.Contains(to, "@") {
			v.addError("feedback.resend.to", to, "invalid email address")
		}
	}
	if cfg.Resend.BaseURL != "" {
		if u, err := url.Parse(cfg.Resend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			v.addError("feedback.resend.base_url", cfg.Resend.BaseURL, "must be an absolute URL")
		}
	}
}

func (v *Validator) validateMetrics(cfg *MetricsConfig) {
	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		v.addError("metrics.path", cfg.Path, "must start with /")
	}
	if strings.HasPrefix(cfg.Path, "/api/") {
		v.addError("metrics.path", cfg.Path, "must not be under /api/")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
