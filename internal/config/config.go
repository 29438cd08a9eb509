package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Identify IdentifyConfig `mapstructure:"identify"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Cache    CacheConfig    `mapstructure:"cache"`
	History  HistoryConfig  `mapstructure:"history"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// MaxConcurrent bounds in-flight identify requests; 0 disables the limit.
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	MaxBacklog     int           `mapstructure:"max_backlog"`
	BacklogTimeout time.Duration `mapstructure:"backlog_timeout"`
	ServeUI        bool          `mapstructure:"serve_ui"`
}

// GeminiConfig configures the generative model.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// IdentifyConfig configures request handling for identification.
type IdentifyConfig struct {
	MaxImageBytes int `mapstructure:"max_image_bytes"`
}

// BreakerConfig configures the circuit breaker around model calls.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxFailures      int           `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests int           `mapstructure:"half_open_requests"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // none, memory, redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// HistoryConfig configures the identification history store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// FeedbackConfig configures feedback delivery.
type FeedbackConfig struct {
	Sender string       `mapstructure:"sender"` // auto, resend, log
	Resend ResendConfig `mapstructure:"resend"`
}

// ResendConfig configures the Resend email sender.
type ResendConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"`
	To      []string      `mapstructure:"to"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ModelConfigured reports whether a Gemini API key is available.
func (c *Config) ModelConfigured() bool {
	return c.Gemini.APIKey != ""
}

// FeedbackSender resolves "auto" to resend when an API key and recipients
// are configured, otherwise log.
func (c *Config) FeedbackSender() string {
	switch c.Feedback.Sender {
	case "resend", "log":
		return c.Feedback.Sender
	}
	if c.Feedback.Resend.APIKey != "" && len(c.Feedback.Resend.To) > 0 {
		return "resend"
	}
	return "log"
}
