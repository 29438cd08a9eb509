package events

import (
	"sync"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()

	bus.Publish(NewIdentificationStartedEvent("req-1", "image/png", 1024, "gemini-2.5-flash"))

	select {
	case received := <-ch:
		if received.EventType() != TypeIdentificationStarted {
			t.Errorf("expected %s, got %s", TypeIdentificationStarted, received.EventType())
		}
		if received.RequestID() != "req-1" {
			t.Errorf("expected req-1, got %s", received.RequestID())
		}
		if received.Timestamp().IsZero() {
			t.Error("expected timestamp to be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEventBus_SubscribeByType(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	failedCh := bus.Subscribe(TypeIdentificationFailed)
	allCh := bus.Subscribe()

	bus.Publish(NewIdentificationStartedEvent("req-1", "image/jpeg", 10, "m"))
	bus.Publish(NewIdentificationFailedEvent("req-1", "NO_JSON", "Could not process"))

	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("allCh should receive event %d", i)
		}
	}

	select {
	case received := <-failedCh:
		if received.EventType() != TypeIdentificationFailed {
			t.Errorf("expected identification_failed, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("failedCh should receive the failed event")
	}

	select {
	case e := <-failedCh:
		t.Errorf("failedCh received unexpected event %s", e.EventType())
	default:
	}
}

func TestEventBus_RingBufferDropsOldest(t *testing.T) {
	bus := New(5)
	defer bus.Close()

	ch := bus.Subscribe()

	for i := 0; i < 10; i++ {
		bus.Publish(NewFeedbackReceivedEvent("req", "fb", "", true))
	}

	if bus.DroppedCount() != 5 {
		t.Errorf("expected 5 dropped events, got %d", bus.DroppedCount())
	}

	received := 0
drain:
	for {
		select {
		case <-ch:
			received++
		default:
			break drain
		}
	}
	if received != 5 {
		t.Errorf("expected 5 buffered events, got %d", received)
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := New(100)
	defer bus.Close()

	ch := bus.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(NewIdentificationCompletedEvent("req", "Fern", "Nephrolepis", false, time.Millisecond))
			}
		}()
	}
	wg.Wait()

	received := 0
drainLoop:
	for {
		select {
		case <-ch:
			received++
		default:
			break drainLoop
		}
	}

	if received == 0 {
		t.Error("should have received some events")
	}
	if int64(received)+bus.DroppedCount() != 1000 {
		t.Errorf("received %d + dropped %d != 1000", received, bus.DroppedCount())
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	ch := bus.Subscribe()
	other := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if bus.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	bus.Publish(NewIdentificationStartedEvent("req", "image/png", 1, "m"))
	select {
	case <-other:
	case <-time.After(100 * time.Millisecond):
		t.Error("remaining subscriber should still receive events")
	}
}

func TestEventBus_CloseClosesChannels(t *testing.T) {
	bus := New(10)
	ch := bus.Subscribe()

	bus.Close()
	bus.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	// Publishing after close is a no-op.
	bus.Publish(NewIdentificationStartedEvent("req", "image/png", 1, "m"))

	late := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus should return a closed channel")
	}
}

func TestEventConstructors(t *testing.T) {
	failed := NewIdentificationFailedEvent("req-9", "UNIDENTIFIED", "Could not identify the plant in the image")
	if failed.Code != "UNIDENTIFIED" || failed.RequestID() != "req-9" {
		t.Errorf("unexpected failed event: %+v", failed)
	}

	done := NewIdentificationCompletedEvent("req-9", "Snake plant", "Dracaena trifasciata", true, 2*time.Second)
	if !done.Cached || done.Duration != 2*time.Second {
		t.Errorf("unexpected completed event: %+v", done)
	}

	fb := NewFeedbackReceivedEvent("req-9", "fb-1", "Snake plant", false)
	if fb.EventType() != TypeFeedbackReceived || fb.Delivered {
		t.Errorf("unexpected feedback event: %+v", fb)
	}
}
