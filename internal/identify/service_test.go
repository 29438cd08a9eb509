package identify

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/metrics"
)

type fakeModel struct {
	mu     sync.Mutex
	name   string
	text   string
	err    error
	delay  time.Duration
	calls  int
	images []core.Image
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Generate(ctx context.Context, prompt string, img core.Image) (string, error) {
	m.mu.Lock()
	m.calls++
	m.images = append(m.images, img)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

type fakeCache struct {
	mu     sync.Mutex
	items  map[string]core.PlantInfo
	getErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]core.PlantInfo)}
}

func (c *fakeCache) Get(_ context.Context, key string) (core.PlantInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return core.PlantInfo{}, false, c.getErr
	}
	info, ok := c.items[key]
	return info, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, info core.PlantInfo, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = info
	c.sets++
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []core.Identification
	err     error
}

func (h *fakeHistory) Record(_ context.Context, rec core.Identification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *fakeHistory) Get(context.Context, string) (*core.Identification, error) { return nil, nil }
func (h *fakeHistory) List(context.Context, int) ([]core.Identification, error) { return nil, nil }
func (h *fakeHistory) Search(context.Context, string, int) ([]core.Identification, error) {
	return nil, nil
}
func (h *fakeHistory) SaveFeedback(context.Context, core.Feedback) error { return nil }
func (h *fakeHistory) Close() error                                      { return nil }

func testImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func TestService_Identify_Success(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "gemini-test", text: "```json\n" + validPlantJSON + "\n```"}
	cache := newFakeCache()
	history := &fakeHistory{}
	bus := events.New(10)
	defer bus.Close()
	ch := bus.Subscribe()

	svc := NewService(model, WithCache(cache), WithHistory(history), WithEventBus(bus), WithMetrics(metrics.New()))

	res, err := svc.Identify(context.Background(), Request{Image: testImage(), RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "Swiss cheese plant", res.Plant.CommonName)
	assert.Equal(t, "gemini-test", res.Model)
	assert.False(t, res.Cached)
	assert.NotEmpty(t, res.ID)

	require.Len(t, model.images, 1)
	assert.Equal(t, "image/png", model.images[0].MIMEType)
	assert.Equal(t, pngBytes, model.images[0].Data)

	assert.Equal(t, 1, cache.sets)
	_, ok := cache.items[CacheKey("gemini-test", model.images[0].Hash)]
	assert.True(t, ok, "result should be cached under model:hash")

	require.Len(t, history.records, 1)
	assert.Equal(t, res.ID, history.records[0].ID)
	assert.Equal(t, "Monstera deliciosa", history.records[0].Plant.ScientificName)
	assert.Equal(t, len(pngBytes), history.records[0].ImageBytes)

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			types = append(types, e.EventType())
			assert.Equal(t, "req-1", e.RequestID())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []string{events.TypeIdentificationStarted, events.TypeIdentificationCompleted}, types)
}

func TestService_Identify_CacheHit(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "gemini-test", text: validPlantJSON}
	cache := newFakeCache()
	history := &fakeHistory{}
	svc := NewService(model, WithCache(cache), WithHistory(history))

	first, err := svc.Identify(context.Background(), Request{Image: testImage()})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Identify(context.Background(), Request{Image: testImage()})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Plant, second.Plant)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, model.calls, "cache hit should skip the model")
	require.Len(t, history.records, 2)
	assert.True(t, history.records[1].Cached)

	third, err := svc.Identify(context.Background(), Request{Image: testImage(), SkipCache: true})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, model.calls)
}

func TestService_Identify_CacheErrorIsMiss(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "m", text: validPlantJSON}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	svc := NewService(model, WithCache(cache))

	res, err := svc.Identify(context.Background(), Request{Image: testImage()})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, model.calls)
}

func TestService_Identify_HistoryErrorIgnored(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "m", text: validPlantJSON}
	svc := NewService(model, WithHistory(&fakeHistory{err: errors.New("disk full")}))

	_, err := svc.Identify(context.Background(), Request{Image: testImage()})
	require.NoError(t, err)
}

func TestService_Identify_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		model    core.PlantModel
		image    string
		category core.ErrorCategory
		code     string
		message  string
	}{
		{
			name:     "empty image",
			model:    &fakeModel{name: "m"},
			image:    "",
			category: core.ErrCatValidation,
			code:     core.CodeInvalidImage,
			message:  core.MsgInvalidImageData,
		},
		{
			name:     "empty image checked before api key",
			model:    nil,
			image:    "   ",
			category: core.ErrCatValidation,
			code:     core.CodeInvalidImage,
			message:  core.MsgInvalidImageData,
		},
		{
			name:     "missing api key",
			model:    nil,
			image:    testImage(),
			category: core.ErrCatConfig,
			code:     core.CodeMissingAPIKey,
			message:  core.MsgMissingAPIKey,
		},
		{
			name:     "bad base64",
			model:    &fakeModel{name: "m"},
			image:    "data:image/png;base64,%%%",
			category: core.ErrCatValidation,
			code:     core.CodeInvalidImage,
			message:  core.MsgInvalidBase64,
		},
		{
			name:     "model returns prose",
			model:    &fakeModel{name: "m", text: "Sorry, I can't help with that."},
			image:    testImage(),
			category: core.ErrCatUpstream,
			code:     core.CodeNoJSON,
			message:  core.MsgUnprocessable,
		},
		{
			name:     "model cannot identify",
			model:    &fakeModel{name: "m", text: `{"commonName":"","scientificName":""}`},
			image:    testImage(),
			category: core.ErrCatUpstream,
			code:     core.CodeUnidentified,
			message:  core.MsgUnidentified,
		},
		{
			name:     "generic model failure",
			model:    &fakeModel{name: "m", err: errors.New("socket closed")},
			image:    testImage(),
			category: core.ErrCatUpstream,
			code:     core.CodeModelFailed,
			message:  core.MsgModelFailed,
		},
		{
			name:     "domain error passes through",
			model:    &fakeModel{name: "m", err: core.ErrRateLimit(core.MsgQuotaExceeded)},
			image:    testImage(),
			category: core.ErrCatRateLimit,
			code:     core.CodeQuotaExceeded,
			message:  core.MsgQuotaExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.model)

			res, err := svc.Identify(context.Background(), Request{Image: tt.image})
			require.Error(t, err)
			assert.Nil(t, res)

			var domErr *core.DomainError
			require.True(t, errors.As(err, &domErr), "expected DomainError, got %T", err)
			assert.Equal(t, tt.category, domErr.Category)
			assert.Equal(t, tt.code, domErr.Code)
			assert.Equal(t, tt.message, domErr.Message)
		})
	}
}

func TestService_Identify_Timeout(t *testing.T) {
	t.Parallel()

	model := &fakeModel{name: "m", delay: time.Second}
	svc := NewService(model, WithTimeout(20*time.Millisecond))

	_, err := svc.Identify(context.Background(), Request{Image: testImage()})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestService_Identify_FailedEvent(t *testing.T) {
	t.Parallel()

	bus := events.New(10)
	defer bus.Close()
	ch := bus.Subscribe(events.TypeIdentificationFailed)

	svc := NewService(&fakeModel{name: "m", text: "no json"}, WithEventBus(bus))
	_, err := svc.Identify(context.Background(), Request{Image: testImage(), RequestID: "req-f"})
	require.Error(t, err)

	select {
	case e := <-ch:
		failed, ok := e.(events.IdentificationFailedEvent)
		require.True(t, ok)
		assert.Equal(t, "req-f", failed.RequestID())
		assert.Equal(t, core.CodeNoJSON, failed.Code)
		assert.Equal(t, core.MsgUnprocessable, failed.Error)
	case <-time.After(time.Second):
		t.Fatal("expected identification_failed event")
	}
}

func TestService_Accessors(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeModel{name: "gemini-2.5-flash"}, WithMaxImageBytes(1024))
	assert.Equal(t, "gemini-2.5-flash", svc.ModelName())
	assert.Equal(t, 1024, svc.MaxImageBytes())

	assert.Equal(t, "", NewService(nil).ModelName())
	assert.Equal(t, DefaultMaxImageBytes, NewService(nil, WithMaxImageBytes(0)).MaxImageBytes())
	assert.Equal(t, "m:abc", CacheKey("m", "abc"))
}
