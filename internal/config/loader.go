package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override (PLANTSAGE_SERVER_PORT).
	EnvPrefix = "PLANTSAGE"
	// ProjectConfigPath is the config file looked up in the working directory.
	ProjectConfigPath = ".plantsage/config.yaml"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (PLANTSAGE_*, plus GOOGLE_API_KEY and RESEND_API_KEY)
// 3. Project config (.plantsage/config.yaml in current directory)
// 4. User config (~/.config/plantsage/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	if err := l.bindSecretEnv(); err != nil {
		return nil, err
	}

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(filepath.Dir(ProjectConfigPath))
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "plantsage"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// bindSecretEnv lets the provider-native variable names fill the API keys.
// The prefixed names still take precedence.
func (l *Loader) bindSecretEnv() error {
	bindings := map[string][]string{
		"gemini.api_key":          {l.envPrefix + "_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"},
		"feedback.resend.api_key": {l.envPrefix + "_FEEDBACK_RESEND_API_KEY", "RESEND_API_KEY"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := l.v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// Watch reloads the config file on change and passes the new configuration
// to onChange. Reload errors are passed with a nil config.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err == nil {
			err = ValidateConfig(cfg)
			if err != nil {
				cfg = nil
			}
		}
		onChange(cfg, err)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.enable_cors", true)
	l.v.SetDefault("server.cors_origins", []string{"*"})
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "90s")
	l.v.SetDefault("server.idle_timeout", "120s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.request_timeout", "75s")
	l.v.SetDefault("server.max_concurrent", 8)
	l.v.SetDefault("server.max_backlog", 32)
	l.v.SetDefault("server.backlog_timeout", "30s")
	l.v.SetDefault("server.serve_ui", true)

	l.v.SetDefault("gemini.api_key", "")
	l.v.SetDefault("gemini.model", "gemini-2.5-flash")
	l.v.SetDefault("gemini.temperature", 0.4)
	l.v.SetDefault("gemini.timeout", "60s")

	l.v.SetDefault("identify.max_image_bytes", 5*1024*1024)

	l.v.SetDefault("breaker.enabled", true)
	l.v.SetDefault("breaker.max_failures", 5)
	l.v.SetDefault("breaker.open_timeout", "30s")
	l.v.SetDefault("breaker.half_open_requests", 1)

	l.v.SetDefault("cache.backend", "memory")
	l.v.SetDefault("cache.ttl", "24h")
	l.v.SetDefault("cache.max_entries", 1000)
	l.v.SetDefault("cache.redis.addr", "localhost:6379")
	l.v.SetDefault("cache.redis.password", "")
	l.v.SetDefault("cache.redis.db", 0)
	l.v.SetDefault("cache.redis.key_prefix", "plantsage:identify:")
	l.v.SetDefault("cache.redis.dial_timeout", "5s")

	l.v.SetDefault("history.enabled", true)
	l.v.SetDefault("history.path", ".plantsage/history.db")

	l.v.SetDefault("feedback.sender", "auto")
	l.v.SetDefault("feedback.resend.api_key", "")
	l.v.SetDefault("feedback.resend.from", "PlantSage <onboarding@resend.dev>")
	l.v.SetDefault("feedback.resend.to", []string{})
	l.v.SetDefault("feedback.resend.base_url", "https://api.resend.com/")
	l.v.SetDefault("feedback.resend.timeout", "10s")

	l.v.SetDefault("metrics.enabled", true)
	l.v.SetDefault("metrics.path", "/metrics")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// secretKeys are leaf names whose values are never printed.
var secretKeys = map[string]bool{
	"api_key":  true,
	"password": true,
}

// RedactedSettings returns AllSettings with secret values replaced.
func (l *Loader) RedactedSettings() map[string]interface{} {
	return redact(l.v.AllSettings())
}

func redact(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = redact(val)
		default:
			if secretKeys[k] && fmt.Sprint(v) != "" {
				out[k] = "[REDACTED]"
			} else {
				out[k] = v
			}
		}
	}
	return out
}
