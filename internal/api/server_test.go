package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/cache"
	"github.com/hugo-lorenzo-mato/plantsage/internal/adapters/history"
	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/feedback"
	"github.com/hugo-lorenzo-mato/plantsage/internal/identify"
)

const plantJSON = `{
  "commonName": "Snake plant",
  "scientificName": "Dracaena trifasciata",
  "family": "Asparagaceae",
  "characteristics": {
    "appearance": "Stiff upright sword-shaped leaves",
    "growthHabit": "Clumping rhizomatous perennial",
    "toxicity": "Mildly toxic to pets"
  },
  "care": {"light": "Low to bright indirect", "water": "Sparingly", "soil": "Cactus mix"},
  "facts": ["Tolerates neglect"]
}`

// mockModel implements core.PlantModel for testing.
type mockModel struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockModel) Name() string { return "gemini-test" }

func (m *mockModel) Generate(_ context.Context, _ string, _ core.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSender implements core.FeedbackSender for testing.
type mockSender struct {
	err  error
	sent []core.Feedback
}

func (s *mockSender) Name() string { return "mock" }

func (s *mockSender) Send(_ context.Context, fb core.Feedback) error {
	s.sent = append(s.sent, fb)
	return s.err
}

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x00}, 24)...)

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

func newTestServer(t *testing.T, model core.PlantModel, idOpts []identify.Option, opts ...ServerOption) *Server {
	t.Helper()
	return NewServer(identify.NewService(model, idOpts...), opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestIdentify_Success(t *testing.T) {
	model := &mockModel{text: "```json\n" + plantJSON + "\n```"}
	srv := newTestServer(t, model, []identify.Option{identify.WithCache(cache.NewMemory(10, time.Hour))})

	body := `{"image":"` + pngDataURL() + `"}`
	rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	result, ok := out["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing result: %v", out)
	}
	if result["commonName"] != "Snake plant" || result["scientificName"] != "Dracaena trifasciata" {
		t.Errorf("result = %v", result)
	}
	if out["cached"] != false {
		t.Errorf("first call cached = %v, want false", out["cached"])
	}
	if id, _ := out["id"].(string); id == "" {
		t.Error("missing id")
	}

	rec, out = doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json; charset=utf-8", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second status = %d", rec.Code)
	}
	if out["cached"] != true {
		t.Errorf("second call cached = %v, want true", out["cached"])
	}
	if model.callCount() != 1 {
		t.Errorf("model calls = %d, want 1 (cache hit skips the model)", model.callCount())
	}

	rec, out = doJSON(t, srv.Handler(), http.MethodPost, "/identify?refresh=true", "application/json", body)
	if rec.Code != http.StatusOK || out["cached"] != false {
		t.Errorf("refresh: status = %d cached = %v", rec.Code, out["cached"])
	}
	if model.callCount() != 2 {
		t.Errorf("model calls after refresh = %d, want 2", model.callCount())
	}
}

func TestIdentify_RequestValidation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantError   string
	}{
		{"empty body", "application/json", "", http.StatusBadRequest, msgBodyMissing},
		{"whitespace body", "application/json", "  \n", http.StatusBadRequest, msgBodyMissing},
		{"wrong content type", "text/plain", `{"image":"x"}`, http.StatusBadRequest, msgContentType},
		{"missing content type", "", `{"image":"x"}`, http.StatusBadRequest, msgContentType},
		{"undecodable json", "application/json", `{"image":`, http.StatusBadRequest, msgInvalidJSON},
		{"missing image", "application/json", `{}`, http.StatusBadRequest, core.MsgInvalidImageData},
		{"image not a string", "application/json", `{"image":42}`, http.StatusBadRequest, core.MsgInvalidImageData},
		{"image empty", "application/json", `{"image":""}`, http.StatusBadRequest, core.MsgInvalidImageData},
		{"image null", "application/json", `{"image":null}`, http.StatusBadRequest, core.MsgInvalidImageData},
		{"bad base64", "application/json", `{"image":"data:image/png;base64,@@@@"}`, http.StatusBadRequest, core.MsgInvalidBase64},
	}

	model := &mockModel{text: plantJSON}
	srv := newTestServer(t, model, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/identify", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if out["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", out["error"], tt.wantError)
			}
		})
	}
	if model.callCount() != 0 {
		t.Errorf("model called %d times for invalid requests", model.callCount())
	}
}

func TestIdentify_TooLarge(t *testing.T) {
	srv := newTestServer(t, &mockModel{text: plantJSON}, []identify.Option{identify.WithMaxImageBytes(16)})

	// Decoded image over the limit.
	rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", `{"image":"`+pngDataURL()+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if out["error"] != "Image size should be less than 16 bytes" {
		t.Errorf("error = %v", out["error"])
	}

	// Body over the request limit.
	huge := `{"image":"` + strings.Repeat("A", int(srv.MaxBodyBytes())) + `"}`
	rec, out = doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", huge)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("body limit status = %d, want 413", rec.Code)
	}
	if out["error"] != "Image size should be less than 16 bytes" {
		t.Errorf("body limit error = %v", out["error"])
	}
}

func TestIdentify_MaxSizeImageWithLineBreaks(t *testing.T) {
	const maxImage = 5 << 20
	srv := newTestServer(t, &mockModel{text: plantJSON}, []identify.Option{identify.WithMaxImageBytes(maxImage)})

	img := make([]byte, maxImage)
	copy(img, pngData)
	encoded := base64.StdEncoding.EncodeToString(img)

	var wrapped strings.Builder
	for len(encoded) > 76 {
		wrapped.WriteString(encoded[:76])
		wrapped.WriteString(`\r\n`)
		encoded = encoded[76:]
	}
	wrapped.WriteString(encoded)

	body := `{"image":"data:image/png;base64,` + wrapped.String() + `"}`
	if int64(len(body)) > srv.MaxBodyBytes() {
		t.Fatalf("body %d bytes exceeds limit %d", len(body), srv.MaxBodyBytes())
	}

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %.200s", rec.Code, rec.Body.String())
	}
}

func TestIdentify_ModelErrors(t *testing.T) {
	tests := []struct {
		name       string
		model      *mockModel
		wantStatus int
		wantError  string
	}{
		{"missing api key", nil, http.StatusInternalServerError, core.MsgMissingAPIKey},
		{"auth rejected", &mockModel{err: core.ErrConfig(core.CodeModelAuth, core.MsgModelAuth)},
			http.StatusBadGateway, core.MsgModelAuth},
		{"quota", &mockModel{err: core.ErrRateLimit(core.MsgQuotaExceeded)},
			http.StatusTooManyRequests, core.MsgQuotaExceeded},
		{"model not found", &mockModel{err: core.ErrConfig(core.CodeModelNotFound, core.MsgModelNotFound)},
			http.StatusBadGateway, core.MsgModelNotFound},
		{"breaker open", &mockModel{err: core.ErrUnavailable(core.MsgModelUnavailable)},
			http.StatusServiceUnavailable, core.MsgModelUnavailable},
		{"deadline", &mockModel{err: core.ErrTimeout(core.MsgIdentifyTimeout)},
			http.StatusGatewayTimeout, core.MsgIdentifyTimeout},
		{"plain model failure", &mockModel{err: errors.New("connection reset")},
			http.StatusBadGateway, core.MsgModelFailed},
		{"empty response", &mockModel{text: "   "},
			http.StatusBadGateway, core.MsgEmptyResponse},
		{"no json", &mockModel{text: "I am not sure what plant this is."},
			http.StatusBadGateway, core.MsgUnprocessable},
		{"malformed json", &mockModel{text: `{"commonName": "Fern",}`},
			http.StatusBadGateway, core.MsgUnprocessable},
		{"unidentified", &mockModel{text: `{"commonName": "", "scientificName": ""}`},
			http.StatusBadGateway, core.MsgUnidentified},
		{"incomplete", &mockModel{text: `{"commonName": "Fern", "scientificName": "Nephrolepis exaltata"}`},
			http.StatusBadGateway, core.MsgIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var model core.PlantModel
			if tt.model != nil {
				model = tt.model
			}
			srv := newTestServer(t, model, nil)

			rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", `{"image":"`+pngDataURL()+`"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if out["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", out["error"], tt.wantError)
			}
			if strings.Contains(rec.Body.String(), "connection reset") {
				t.Error("error cause leaked to client")
			}
		})
	}
}

func TestIdentify_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockModel{text: plantJSON}, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec, out := doJSON(t, srv.Handler(), method, "/identify", "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d, want 405", method, rec.Code)
		}
		if out["error"] != msgMethodNotAllowed {
			t.Errorf("%s error = %v", method, out["error"])
		}
	}
}

func TestFeedback(t *testing.T) {
	sender := &mockSender{}
	fbSvc := feedback.NewService(sender)
	srv := newTestServer(t, &mockModel{text: plantJSON}, nil, WithFeedback(fbSvc))

	rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/feedback", "application/json",
		`{"name":"Ana","email":"ana@example.com","feedback":"Spot on!","plantName":"Snake plant"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if out["message"] != core.MsgFeedbackDelivered {
		t.Errorf("message = %v", out["message"])
	}
	if len(sender.sent) != 1 || sender.sent[0].PlantName != "Snake plant" || sender.sent[0].Message != "Spot on!" {
		t.Errorf("sent = %+v", sender.sent)
	}

	rec, out = doJSON(t, srv.Handler(), http.MethodPost, "/feedback", "application/json", `{"feedback":"   "}`)
	if rec.Code != http.StatusBadRequest || out["error"] != core.MsgFeedbackRequired {
		t.Errorf("empty feedback: status = %d error = %v", rec.Code, out["error"])
	}
}

func TestFeedback_DeliveryFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("smtp down")}
	srv := newTestServer(t, &mockModel{text: plantJSON}, nil, WithFeedback(feedback.NewService(sender)))

	rec, out := doJSON(t, srv.Handler(), http.MethodPost, "/feedback", "application/json", `{"feedback":"hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if out["error"] != core.MsgFeedbackFailed {
		t.Errorf("error = %v", out["error"])
	}
}

func TestHistory(t *testing.T) {
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	model := &mockModel{text: plantJSON}
	srv := newTestServer(t, model, []identify.Option{identify.WithHistory(store)}, WithHistory(store))

	rec, created := doJSON(t, srv.Handler(), http.MethodPost, "/identify", "application/json", `{"image":"`+pngDataURL()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("identify status = %d", rec.Code)
	}
	id := created["id"].(string)

	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/history", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if out["count"] != float64(1) {
		t.Errorf("count = %v, want 1", out["count"])
	}

	rec, out = doJSON(t, srv.Handler(), http.MethodGet, "/history?q=snake", "", "")
	if rec.Code != http.StatusOK || out["count"] != float64(1) {
		t.Errorf("search: status = %d count = %v", rec.Code, out["count"])
	}

	rec, out = doJSON(t, srv.Handler(), http.MethodGet, "/history/"+id, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if out["id"] != id {
		t.Errorf("id = %v, want %s", out["id"], id)
	}

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/history/does-not-exist", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/history?limit=zero", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHistory_Disabled(t *testing.T) {
	srv := newTestServer(t, &mockModel{text: plantJSON}, nil)

	for _, path := range []string{"/history", "/history/abc"} {
		rec, out := doJSON(t, srv.Handler(), http.MethodGet, path, "", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
		if out["error"] != msgHistoryDisabled {
			t.Errorf("%s error = %v", path, out["error"])
		}
	}
}

type stubBreaker string

func (b stubBreaker) BreakerState() string { return string(b) }

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockModel{}, nil, WithBreaker(stubBreaker("open")))

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "gemini-test" || !resp.ModelConfigured {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Status != "degraded" || resp.Breaker != "open" {
		t.Errorf("status = %q breaker = %q, want degraded/open", resp.Status, resp.Breaker)
	}
	if resp.Feedback != "log" {
		t.Errorf("feedback sender = %q, want log", resp.Feedback)
	}

	srv = newTestServer(t, nil, nil)
	rec = httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ModelConfigured || resp.Status != "healthy" {
		t.Errorf("unconfigured resp = %+v", resp)
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, &mockModel{}, nil)
	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound || out["error"] != msgNotFound {
		t.Errorf("status = %d error = %v", rec.Code, out["error"])
	}
}
