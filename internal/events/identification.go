package events

import "time"

// Event type constants for identification events.
const (
	TypeIdentificationStarted   = "identification_started"
	TypeIdentificationCompleted = "identification_completed"
	TypeIdentificationFailed    = "identification_failed"
)

// IdentificationStartedEvent is emitted once the image has been decoded.
type IdentificationStartedEvent struct {
	BaseEvent
	MIMEType   string `json:"mime_type"`
	ImageBytes int    `json:"image_bytes"`
	Model      string `json:"model"`
}

// NewIdentificationStartedEvent creates a new identification started event.
func NewIdentificationStartedEvent(requestID, mimeType string, imageBytes int, model string) IdentificationStartedEvent {
	return IdentificationStartedEvent{
		BaseEvent:  NewBaseEvent(TypeIdentificationStarted, requestID),
		MIMEType:   mimeType,
		ImageBytes: imageBytes,
		Model:      model,
	}
}

// IdentificationCompletedEvent is emitted when a PlantInfo was produced.
type IdentificationCompletedEvent struct {
	BaseEvent
	CommonName     string        `json:"common_name"`
	ScientificName string        `json:"scientific_name"`
	Cached         bool          `json:"cached"`
	Duration       time.Duration `json:"duration"`
}

// NewIdentificationCompletedEvent creates a new identification completed event.
func NewIdentificationCompletedEvent(requestID, commonName, scientificName string, cached bool, duration time.Duration) IdentificationCompletedEvent {
	return IdentificationCompletedEvent{
		BaseEvent:      NewBaseEvent(TypeIdentificationCompleted, requestID),
		CommonName:     commonName,
		ScientificName: scientificName,
		Cached:         cached,
		Duration:       duration,
	}
}

// IdentificationFailedEvent is emitted when identification ends in an error.
type IdentificationFailedEvent struct {
	BaseEvent
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewIdentificationFailedEvent creates a new identification failed event.
// message should be the user-facing text, never the raw cause.
func NewIdentificationFailedEvent(requestID, code, message string) IdentificationFailedEvent {
	return IdentificationFailedEvent{
		BaseEvent: NewBaseEvent(TypeIdentificationFailed, requestID),
		Code:      code,
		Error:     message,
	}
}
