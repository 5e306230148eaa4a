package notify

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"
)

// SMTP sends email through an SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer creates an SMTP mailer. Empty credentials skip authentication.
func NewSMTPMailer(host string, port int, username, password string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// SendMail dials a connection per message. gomail takes no context, so ctx
// is only checked before dialing.
func (s *SMTP) SendMail(ctx context.Context, e *Email) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before smtp delivery")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed")
	}
	return nil
}
