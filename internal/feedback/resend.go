package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

const (
	// DefaultResendURL is the Resend API root.
	DefaultResendURL = "https://api.resend.com/"
	// DefaultFrom is the sender used when none is configured.
	DefaultFrom = "PlantSage <onboarding@resend.dev>"
)

// ResendConfig configures the Resend sender.
type ResendConfig struct {
	APIKey string
	From   string
	To     []string
	// BaseURL overrides the API root, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// ResendSender delivers feedback as email through Resend.
type ResendSender struct {
	from   string
	to     []string
	client *resend.Client
}

// NewResendSender validates cfg and creates a sender.
func NewResendSender(cfg ResendConfig) (*ResendSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("resend api key is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("resend recipient list is empty")
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resend.NewCustomClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey)
	if cfg.BaseURL != "" {
		base, err := resendBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = base
	}

	return &ResendSender{from: cfg.From, to: cfg.To, client: client}, nil
}

// resendBaseURL parses raw as an API root. Request paths are resolved
// relative to it, so it always ends in a slash.
func resendBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid resend base url %q", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Name implements core.FeedbackSender.
func (s *ResendSender) Name() string { return "resend" }

// Send delivers one email.
func (s *ResendSender) Send(ctx context.Context, fb core.Feedback) error {
	body, err := HTMLBody(fb)
	if err != nil {
		return fmt.Errorf("rendering feedback email: %w", err)
	}

	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      s.to,
		Subject: Subject(fb),
		Html:    body,
	}
	if strings.Contains(fb.Email, "@") {
		req.ReplyTo = strings.TrimSpace(fb.Email)
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("sending feedback email: %w", err)
	}
	return nil
}

var _ core.FeedbackSender = (*ResendSender)(nil)
