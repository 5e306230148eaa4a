// Package notify delivers account lifecycle notifications.
package notify

import "context"

// Email is a rendered plain text message.
type Email struct {
	Subject string
	Body    string
	From    string
	To      []string
}

// Mailer sends a rendered email.
type Mailer interface {
	SendMail(ctx context.Context, e *Email) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, e *Email) error

// SendMail implements Mailer.
func (f MailerFunc) SendMail(ctx context.Context, e *Email) error {
	return f(ctx, e)
}
