// Package notify delivers alert notifications to external channels.
//
// Every send is a single attempt bounded by a timeout. Failures are
// returned as *DeliveryError and never retried here.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/seenimoa/creditpulse/internal/infra"
	"github.com/seenimoa/creditpulse/pkg/models"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 5 * time.Second

// Notifier delivers one notification.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n models.Notification) error
}

// ErrNotConfigured is wrapped when a transport has no destination.
var ErrNotConfigured = errors.New("destination not configured")

// DeliveryError reports a failed delivery attempt.
type DeliveryError struct {
	Transport string
	BondID    string
	Status    int // HTTP status, 0 when no response was received
	Err       error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("%s delivery for bond %q failed", e.Transport, e.BondID)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// ─── Webhook ────────────────────────────────────────────────────────

// Webhook POSTs the notification as JSON. Only HTTP 200 counts as
// delivered.
type Webhook struct {
	URL     string
	Timeout time.Duration
}

// NewWebhook returns a webhook notifier.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{URL: url, Timeout: timeout}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Notify(ctx context.Context, n models.Notification) error {
	if w.URL == "" {
		return &DeliveryError{Transport: w.Name(), BondID: n.BondID, Err: ErrNotConfigured}
	}
	ctx, cancel := withTimeout(ctx, w.Timeout)
	defer cancel()

	_, status, err := infra.DoPostJSON(ctx, w.URL, n, nil)
	if err != nil {
		return &DeliveryError{Transport: w.Name(), BondID: n.BondID, Err: err}
	}
	if status != http.StatusOK {
		return &DeliveryError{Transport: w.Name(), BondID: n.BondID, Status: status}
	}
	return nil
}

// ─── Slack ──────────────────────────────────────────────────────────

// Slack posts the notification to a Slack incoming webhook.
type Slack struct {
	WebhookURL string
	Timeout    time.Duration
	Username   string
}

// NewSlack returns a Slack notifier.
func NewSlack(webhookURL string, timeout time.Duration) *Slack {
	return &Slack{WebhookURL: webhookURL, Timeout: timeout, Username: "CreditPulse"}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, n models.Notification) error {
	if s.WebhookURL == "" {
		return &DeliveryError{Transport: s.Name(), BondID: n.BondID, Err: ErrNotConfigured}
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	msg := &slack.WebhookMessage{
		Username: s.Username,
		Text:     fmt.Sprintf("*%s* %s", n.BondID, n.Message),
		Attachments: []slack.Attachment{{
			Color: "danger",
			Fields: []slack.AttachmentField{
				{Title: "Bond", Value: n.BondID, Short: true},
				{Title: "Channel", Value: n.Channel, Short: true},
			},
		}},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, infra.HTTPClient, msg); err != nil {
		return &DeliveryError{Transport: s.Name(), BondID: n.BondID, Err: err}
	}
	return nil
}

// ─── Fan-out ────────────────────────────────────────────────────────

// Multi sends to every notifier in order. It succeeds if at least one
// delivery succeeds; otherwise the errors are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	if len(m) == 0 {
		return &DeliveryError{Transport: m.Name(), BondID: n.BondID, Err: ErrNotConfigured}
	}
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
