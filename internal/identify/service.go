package identify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Request is one identification attempt.
type Request struct {
	// Image is a base64 payload or a data URL.
	Image string
	// RequestID correlates logs and events. Generated when empty.
	RequestID string
	// SkipCache forces a model call even when a cached result exists.
	SkipCache bool
}

// Result is a successful identification.
type Result struct {
	ID       string
	Plant    core.PlantInfo
	Model    string
	Cached   bool
	Duration time.Duration
}

// Service runs the identify pipeline: decode, cache lookup, model call,
// parse, then record.
type Service struct {
	model         core.PlantModel
	cache         core.ResultCache
	history       core.HistoryStore
	bus           *events.EventBus
	metrics       *metrics.Metrics
	logger        *logging.Logger
	maxImageBytes int
	cacheTTL      time.Duration
	timeout       time.Duration
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c core.ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithHistory records every successful identification.
func WithHistory(h core.HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithEventBus publishes identification events.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics records outcome and latency metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxImageBytes sets the decoded image limit.
func WithMaxImageBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImageBytes = n
		}
	}
}

// WithCacheTTL sets how long cached results live.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) { s.cacheTTL = d }
}

// WithTimeout bounds the model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service. model may be nil when no API key is
// configured; Identify then fails with a configuration error.
func NewService(model core.PlantModel, opts ...Option) *Service {
	s := &Service{
		model:         model,
		logger:        logging.NewNop(),
		maxImageBytes: DefaultMaxImageBytes,
		timeout:       DefaultTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelName returns the configured model name, or "" without a model.
func (s *Service) ModelName() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

// MaxImageBytes returns the decoded image limit.
func (s *Service) MaxImageBytes() int {
	return s.maxImageBytes
}

// CacheKey builds the result cache key for a model and image hash.
func CacheKey(model, imageHash string) string {
	return model + ":" + imageHash
}

// Identify decodes the image, asks the model, and returns validated plant
// information. Every returned error is a *core.DomainError.
func (s *Service) Identify(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := s.logger.WithRequest(requestID).WithComponent("identify")

	if strings.TrimSpace(req.Image) == "" {
		return nil, s.fail(requestID, core.ErrValidation(core.CodeInvalidImage, core.MsgInvalidImageData))
	}
	if s.model == nil {
		return nil, s.fail(requestID, core.ErrConfig(core.CodeMissingAPIKey, core.MsgMissingAPIKey))
	}

	img, err := DecodeImage(req.Image, s.maxImageBytes)
	if err != nil {
		return nil, s.fail(requestID, err)
	}

	modelName := s.model.Name()
	s.publish(events.NewIdentificationStartedEvent(requestID, img.MIMEType, img.Size(), modelName))
	log.Debug("identification started", "mime_type", img.MIMEType, "bytes", img.Size(), "hash", img.Hash)

	key := CacheKey(modelName, img.Hash)
	if !req.SkipCache {
		if info, ok := s.lookup(ctx, log, key); ok {
			res := &Result{
				ID:       uuid.NewString(),
				Plant:    info,
				Model:    modelName,
				Cached:   true,
				Duration: s.now().Sub(start),
			}
			s.record(ctx, log, img, res)
			s.metrics.IdentificationOutcome(metrics.OutcomeCached)
			s.publish(events.NewIdentificationCompletedEvent(requestID, info.CommonName, info.ScientificName, true, res.Duration))
			log.Info("identification served from cache", "plant", info.CommonName)
			return res, nil
		}
	}

	text, err := s.generate(ctx, img)
	if err != nil {
		log.Warn("model call failed", "error", err)
		return nil, s.fail(requestID, err)
	}

	info, err := ParseResponse(text)
	if err != nil {
		log.Warn("model response rejected", "code", core.GetCode(err), "error", err)
		return nil, s.fail(requestID, err)
	}

	res := &Result{
		ID:       uuid.NewString(),
		Plant:    info,
		Model:    modelName,
		Duration: s.now().Sub(start),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, info, s.cacheTTL); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}
	s.record(ctx, log, img, res)
	s.metrics.IdentificationOutcome(metrics.OutcomeSuccess)
	s.publish(events.NewIdentificationCompletedEvent(requestID, info.CommonName, info.ScientificName, false, res.Duration))
	log.Info("plant identified", "plant", info.CommonName, "scientific_name", info.ScientificName, "duration", res.Duration)
	return res, nil
}

func (s *Service) generate(ctx context.Context, img core.Image) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	began := s.now()
	text, err := s.model.Generate(callCtx, BuildPrompt(), img)
	s.metrics.ObserveModelLatency(s.now().Sub(began))
	if err == nil {
		return text, nil
	}

	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return "", domErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", core.ErrTimeout(core.MsgIdentifyTimeout).WithCause(err)
	}
	return "", core.ErrUpstream(core.CodeModelFailed, core.MsgModelFailed).WithCause(err)
}

// lookup treats cache errors as misses.
func (s *Service) lookup(ctx context.Context, log *logging.Logger, key string) (core.PlantInfo, bool) {
	if s.cache == nil {
		return core.PlantInfo{}, false
	}
	info, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheLookup(metrics.CacheError)
		log.Warn("cache read failed", "error", err)
		return core.PlantInfo{}, false
	case !ok:
		s.metrics.CacheLookup(metrics.CacheMiss)
		return core.PlantInfo{}, false
	default:
		s.metrics.CacheLookup(metrics.CacheHit)
		return info, true
	}
}

func (s *Service) record(ctx context.Context, log *logging.Logger, img core.Image, res *Result) {
	if s.history == nil {
		return
	}
	rec := core.Identification{
		ID:         res.ID,
		ImageHash:  img.Hash,
		MIMEType:   img.MIMEType,
		ImageBytes: img.Size(),
		Model:      res.Model,
		Plant:      res.Plant,
		Cached:     res.Cached,
		Duration:   res.Duration,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		log.Warn("history write failed", "id", res.ID, "error", err)
	}
}

// fail normalizes err to a DomainError and reports the failure.
func (s *Service) fail(requestID string, err error) error {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		domErr = core.ErrInternal(core.MsgIdentifyFailed).WithCause(err)
	}
	s.metrics.IdentificationOutcome(metrics.OutcomeFailed)
	s.publish(events.NewIdentificationFailedEvent(requestID, domErr.Code, domErr.Message))
	return domErr
}

func (s *Service) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
