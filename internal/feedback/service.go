// Package feedback accepts user feedback, delivers it to the maintainers and
// keeps a copy in history.
package feedback

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/events"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
)

// Request is one feedback submission as received from a client.
type Request struct {
	RequestID string
	Name      string
	Email     string
	PlantName string
	Message   string
}

// Service validates, delivers and records feedback.
type Service struct {
	sender  core.FeedbackSender
	history core.HistoryStore
	bus     *events.EventBus
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHistory persists every submission.
func WithHistory(h core.HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithEventBus publishes feedback_received events.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. A nil sender falls back to logging.
func NewService(sender core.FeedbackSender, opts ...Option) *Service {
	s := &Service{
		sender: sender,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sender == nil {
		s.sender = NewLogSender(s.logger)
	}
	return s
}

// SenderName returns the active sender name.
func (s *Service) SenderName() string {
	return s.sender.Name()
}

// Submit delivers one feedback message. The stored record keeps whether
// delivery succeeded even when it did not.
func (s *Service) Submit(ctx context.Context, req Request) (*core.Feedback, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, core.ErrValidation(core.CodeEmptyFeedback, core.MsgFeedbackRequired)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := s.logger.WithRequest(requestID).WithComponent("feedback")

	fb := core.Feedback{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		PlantName: strings.TrimSpace(req.PlantName),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: s.now().UTC(),
	}

	sendErr := s.sender.Send(ctx, fb)
	fb.Delivered = sendErr == nil
	if sendErr != nil {
		log.Error("feedback delivery failed", "sender", s.sender.Name(), "feedback_id", fb.ID, "error", sendErr)
	}

	if s.history != nil {
		if err := s.history.SaveFeedback(ctx, fb); err != nil {
			log.Warn("saving feedback failed", "feedback_id", fb.ID, "error", err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.NewFeedbackReceivedEvent(requestID, fb.ID, fb.PlantName, fb.Delivered))
	}

	if sendErr != nil {
		return &fb, &core.DomainError{
			Category: core.ErrCatInternal,
			Code:     core.CodeDeliveryFailed,
			Message:  core.MsgFeedbackFailed,
			Cause:    sendErr,
		}
	}
	log.Info("feedback delivered", "sender", s.sender.Name(), "feedback_id", fb.ID)
	return &fb, nil
}
