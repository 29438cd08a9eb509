package core

import (
	"context"
	"time"
)

// =============================================================================
// Model Port
// =============================================================================

// PlantModel sends a prompt and an image to a generative model and returns
// its raw text answer. Implementations translate provider failures into
// DomainErrors.
type PlantModel interface {
	// Name returns the model identifier (e.g., "gemini-2.5-flash").
	Name() string

	// Generate runs one multimodal request.
	Generate(ctx context.Context, prompt string, img Image) (string, error)
}

// =============================================================================
// Cache Port
// =============================================================================

// ResultCache stores parsed results keyed by model and image hash.
type ResultCache interface {
	// Get returns the cached result and whether it was found.
	Get(ctx context.Context, key string) (PlantInfo, bool, error)

	// Set stores a result for ttl. A zero ttl means the backend default.
	Set(ctx context.Context, key string, info PlantInfo, ttl time.Duration) error
}

// =============================================================================
// History Port
// =============================================================================

// HistoryStore records identifications and feedback.
type HistoryStore interface {
	Record(ctx context.Context, rec Identification) error
	Get(ctx context.Context, id string) (*Identification, error)
	List(ctx context.Context, limit int) ([]Identification, error)
	Search(ctx context.Context, query string, limit int) ([]Identification, error)
	SaveFeedback(ctx context.Context, fb Feedback) error
	Close() error
}

// =============================================================================
// Feedback Port
// =============================================================================

// FeedbackSender delivers feedback to the maintainers.
type FeedbackSender interface {
	// Name returns the sender identifier (e.g., "resend", "log").
	Name() string

	Send(ctx context.Context, fb Feedback) error
}
