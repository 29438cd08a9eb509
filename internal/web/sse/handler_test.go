package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
)

// connect opens a stream and consumes the connected event.
func connect(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read event line: %v", err)
	}
	if !strings.HasPrefix(line, "event: connected") {
		t.Fatalf("expected connected event, got %s", line)
	}
	_, _ = reader.ReadString('\n') // data
	_, _ = reader.ReadString('\n') // blank
	return resp, reader
}

// readEvent reads one event/data pair.
func readEvent(t *testing.T, reader *bufio.Reader) (string, map[string]interface{}) {
	t.Helper()
	eventLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read event line: %v", err)
	}
	dataLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read data line: %v", err)
	}
	_, _ = reader.ReadString('\n')

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &data); err != nil {
		t.Fatalf("failed to parse event data: %v", err)
	}
	return strings.TrimSpace(strings.TrimPrefix(eventLine, "event: ")), data
}

func TestHandler_ServeHTTP_ConnectsClient(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, _ := connect(t, ctx, ts.URL)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected Cache-Control no-cache, got %s", cc)
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, reader := connect(t, ctx, ts.URL)
	defer resp.Body.Close()

	bus.Publish(events.NewIdentificationCompletedEvent("req-1", "Monstera", "Monstera deliciosa", false, time.Second))

	eventType, data := readEvent(t, reader)
	if eventType != events.TypeIdentificationCompleted {
		t.Errorf("expected %s, got %s", events.TypeIdentificationCompleted, eventType)
	}
	if data["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", data["request_id"])
	}
	if data["common_name"] != "Monstera" {
		t.Errorf("expected common_name Monstera, got %v", data["common_name"])
	}
}

func TestHandler_FiltersType(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, reader := connect(t, ctx, ts.URL+"?type=identification_failed,feedback_received")
	defer resp.Body.Close()

	bus.Publish(events.NewIdentificationStartedEvent("req-1", "image/png", 100, "gemini-2.5-flash"))
	bus.Publish(events.NewIdentificationFailedEvent("req-1", "UNIDENTIFIED", "Could not identify plant"))

	eventType, data := readEvent(t, reader)
	if eventType != events.TypeIdentificationFailed {
		t.Errorf("expected only failed events, got %s", eventType)
	}
	if data["code"] != "UNIDENTIFIED" {
		t.Errorf("expected code UNIDENTIFIED, got %v", data["code"])
	}
}

func TestHandler_FiltersRequest(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(10 * time.Second)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, reader := connect(t, ctx, ts.URL+"?request=req-2")
	defer resp.Body.Close()

	bus.Publish(events.NewIdentificationStartedEvent("req-1", "image/png", 100, "m"))
	bus.Publish(events.NewIdentificationStartedEvent("req-2", "image/jpeg", 200, "m"))

	_, data := readEvent(t, reader)
	if data["request_id"] != "req-2" {
		t.Errorf("expected filtered request req-2, got %v", data["request_id"])
	}
}

func TestHandler_ClientCount(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	ts := httptest.NewServer(h)
	defer ts.Close()

	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	resp, _ := connect(t, ctx, ts.URL)

	if h.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", h.ClientCount())
	}

	cancel()
	resp.Body.Close()

	// Give handler time to clean up
	time.Sleep(100 * time.Millisecond)

	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", h.ClientCount())
	}
}

func TestHandler_Shutdown(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 3; i++ {
		resp, _ := connect(t, ctx, ts.URL)
		defer resp.Body.Close()
	}

	if h.ClientCount() != 3 {
		t.Errorf("expected 3 clients, got %d", h.ClientCount())
	}

	if err := h.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", h.ClientCount())
	}
}

func TestHandler_Heartbeat(t *testing.T) {
	bus := events.New(100)
	defer bus.Close()

	h := NewHandler(bus)
	h.SetHeartbeatFrequency(100 * time.Millisecond)
	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, reader := connect(t, ctx, ts.URL)
	defer resp.Body.Close()

	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read heartbeat: %v", err)
	}
	if !strings.HasPrefix(line, ": heartbeat") {
		t.Errorf("expected heartbeat comment, got %s", line)
	}
}

func TestParseTypes(t *testing.T) {
	got := parseTypes(" identification_failed, ,feedback_received")
	if len(got) != 2 || got[0] != "identification_failed" || got[1] != "feedback_received" {
		t.Errorf("parseTypes() = %v", got)
	}
	if parseTypes("") != nil {
		t.Error("parseTypes(\"\") should be nil")
	}
}
