package events

// TypeFeedbackReceived is emitted for every accepted feedback submission.
const TypeFeedbackReceived = "feedback_received"

// FeedbackReceivedEvent carries no contact details, only what the feed shows.
type FeedbackReceivedEvent struct {
	BaseEvent
	FeedbackID string `json:"feedback_id"`
	PlantName  string `json:"plant_name,omitempty"`
	Delivered  bool   `json:"delivered"`
}

// NewFeedbackReceivedEvent creates a new feedback received event.
func NewFeedbackReceivedEvent(requestID, feedbackID, plantName string, delivered bool) FeedbackReceivedEvent {
	return FeedbackReceivedEvent{
		BaseEvent:  NewBaseEvent(TypeFeedbackReceived, requestID),
		FeedbackID: feedbackID,
		PlantName:  plantName,
		Delivered:  delivered,
	}
}
