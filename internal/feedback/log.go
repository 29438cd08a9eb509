package feedback

import (
	"context"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
	"github.com/hugo-lorenzo-mato/plantsage/internal/logging"
)

// LogSender only logs feedback. Used when no email provider is configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSender{logger: logger}
}

// Name implements core.FeedbackSender.
func (s *LogSender) Name() string { return "log" }

// Send logs the submission.
func (s *LogSender) Send(_ context.Context, fb core.Feedback) error {
	s.logger.Info("feedback received",
		"feedback_id", fb.ID,
		"subject", Subject(fb),
		"name", fb.Name,
		"plant_name", fb.PlantName,
		"message", fb.Message,
	)
	return nil
}

var _ core.FeedbackSender = (*LogSender)(nil)
