// Package gemini implements core.PlantModel on the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// BreakerConfig configures the circuit breaker around model calls.
type BreakerConfig struct {
	Enabled bool
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probes are allowed while half-open.
	HalfOpenRequests uint32
}

// Config configures the model client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Breaker     BreakerConfig
}

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Model sends one image and prompt per call and returns the text answer.
type Model struct {
	name        string
	temperature float32
	generate    generateFunc
	breaker     *gobreaker.CircuitBreaker
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithMetrics reports breaker state changes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Model) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Model) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gemini-backed model. An empty API key is a configuration
// error; callers that want to start without a key should not construct one.
func New(ctx context.Context, cfg Config, opts ...Option) (*Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ErrConfig(core.CodeMissingAPIKey, core.MsgMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return newModel(cfg, client.Models.GenerateContent, opts...), nil
}

func newModel(cfg Config, generate generateFunc, opts ...Option) *Model {
	name := strings.TrimSpace(cfg.Model)
	if name == "" {
		name = DefaultModel
	}
	m := &Model{
		name:        name,
		temperature: cfg.Temperature,
		generate:    generate,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.Breaker.Enabled {
		m.breaker = m.newBreaker(cfg.Breaker)
	}
	return m
}

func (m *Model) newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	halfOpen := cfg.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini:" + m.name,
		MaxRequests: halfOpen,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Bad input from our side and caller cancellations say nothing
		// about the model's health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return core.IsCategory(err, core.ErrCatConfig)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.metrics.SetBreakerState(int(to))
			m.logger.Warn("model circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Name returns the model identifier.
func (m *Model) Name() string {
	return m.name
}

// BreakerState returns "closed", "half-open", "open", or "disabled".
func (m *Model) BreakerState() string {
	if m.breaker == nil {
		return "disabled"
	}
	return m.breaker.State().String()
}

// Generate sends prompt and image and returns the model's text answer.
// Errors are *core.DomainError.
func (m *Model) Generate(ctx context.Context, prompt string, img core.Image) (string, error) {
	call := func() (interface{}, error) {
		return m.call(ctx, prompt, img)
	}

	var (
		out interface{}
		err error
	)
	if m.breaker != nil {
		out, err = m.breaker.Execute(call)
	} else {
		out, err = call()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", core.ErrUnavailable(core.MsgModelUnavailable).WithCause(err)
	}
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

func (m *Model) call(ctx context.Context, prompt string, img core.Image) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(img.Data, img.MIMEType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](m.temperature),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.generate(ctx, m.name, contents, config)
	if err != nil {
		return "", classify(ctx, err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

// classify maps a provider error onto the user-facing categories.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ErrTimeout(core.MsgIdentifyTimeout).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if apiErr, ok := asAPIError(err); ok {
		return classifyAPIError(apiErr, err)
	}
	return classifyText(err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

// classifyAPIError trusts the HTTP code. Message and Details are free text
// and only consulted for the 400 the API returns on a bad key.
func classifyAPIError(apiErr genai.APIError, err error) error {
	switch apiErr.Code {
	case 401, 403:
		return core.ErrConfig(core.CodeModelAuth, core.MsgModelAuth).WithCause(err)
	case 400:
		if mentionsAPIKey(strings.ToLower(apiErr.Message)) || apiErr.Status == "UNAUTHENTICATED" {
			return core.ErrConfig(core.CodeModelAuth, core.MsgModelAuth).WithCause(err)
		}
	case 404:
		return core.ErrConfig(core.CodeModelNotFound, core.MsgModelNotFound).WithCause(err)
	case 429:
		return core.ErrRateLimit(core.MsgQuotaExceeded).WithCause(err)
	case 503:
		return core.ErrUnavailable(core.MsgModelUnavailable).WithCause(err)
	case 504:
		return core.ErrTimeout(core.MsgIdentifyTimeout).WithCause(err)
	}
	return core.ErrUpstream(core.CodeModelFailed, core.MsgModelFailed).WithCause(err)
}

func mentionsAPIKey(msg string) bool {
	return strings.Contains(msg, "api key") || strings.Contains(msg, "api_key")
}

// classifyText handles transport errors that never reached the API.
func classifyText(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case mentionsAPIKey(msg) || strings.Contains(msg, "permission_denied") ||
		strings.Contains(msg, "unauthenticated"):
		return core.ErrConfig(core.CodeModelAuth, core.MsgModelAuth).WithCause(err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted"):
		return core.ErrRateLimit(core.MsgQuotaExceeded).WithCause(err)
	case strings.Contains(msg, "not_found"):
		return core.ErrConfig(core.CodeModelNotFound, core.MsgModelNotFound).WithCause(err)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded"):
		return core.ErrUnavailable(core.MsgModelUnavailable).WithCause(err)
	default:
		return core.ErrUpstream(core.CodeModelFailed, core.MsgModelFailed).WithCause(err)
	}
}

var _ core.PlantModel = (*Model)(nil)
