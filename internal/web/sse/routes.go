package sse

import (
	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
)

// RegisterRoutes registers the SSE handler at /events on the given router.
func RegisterRoutes(r chi.Router, bus *events.EventBus) *Handler {
	h := NewHandler(bus)
	r.Get("/events", h.ServeHTTP)
	return h
}
