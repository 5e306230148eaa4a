package notify

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mailgun/mailgun-go/v4"
)

// Mailgun sends email through the Mailgun HTTP API.
type Mailgun struct {
	mg      *mailgun.MailgunImpl
	timeout time.Duration
}

// NewMailgunMailer creates a Mailgun mailer. An empty apiBase keeps the
// library default (US region).
func NewMailgunMailer(domain, apiKey, apiBase string) *Mailgun {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &Mailgun{
		mg:      mg,
		timeout: 10 * time.Second,
	}
}

func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	message := mailgun.NewMessage(e.From, e.Subject, e.Body, e.To...)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mailgun delivery failed")
	}
	return nil
}
