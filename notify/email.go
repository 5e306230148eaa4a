package notify

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	accounts "github.com/goliatone/go-accounts"
)

// DefaultLinkPaths maps token purposes to the path appended to the base URL.
func DefaultLinkPaths() map[accounts.TokenPurpose]string {
	return map[accounts.TokenPurpose]string{
		accounts.TokenPurposeRegistration:   "/account/confirm",
		accounts.TokenPurposePasswordReset:  "/password/reset",
		accounts.TokenPurposeEmailChange:    "/account/email/confirm",
		accounts.TokenPurposeAccountUnblock: "/account/unblock",
	}
}

// EmailNotifier renders notifications with pongo2 templates and sends them
// through a Mailer. Delivery failures are logged, never returned.
type EmailNotifier struct {
	mailer     Mailer
	from       string
	baseURL    string
	paths      map[accounts.TokenPurpose]string
	overrides  map[string]Template
	templates  map[string]*compiledTemplate
	logger     accounts.Logger
	timeFormat string
	async      bool
	wg         sync.WaitGroup
}

// EmailOption configures an EmailNotifier.
type EmailOption func(*EmailNotifier)

// WithBaseURL sets the URL token links are built from.
func WithBaseURL(baseURL string) EmailOption {
	return func(n *EmailNotifier) {
		n.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLinkPath overrides the link path for purpose.
func WithLinkPath(purpose accounts.TokenPurpose, path string) EmailOption {
	return func(n *EmailNotifier) {
		n.paths[purpose] = path
	}
}

// WithTemplate overrides the template for kind.
func WithTemplate(kind string, t Template) EmailOption {
	return func(n *EmailNotifier) {
		n.overrides[kind] = t
	}
}

func WithEmailLogger(logger accounts.Logger) EmailOption {
	return func(n *EmailNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithAsync sends in background goroutines. Call Wait before shutdown.
func WithAsync(async bool) EmailOption {
	return func(n *EmailNotifier) {
		n.async = async
	}
}

// NewEmailNotifier compiles the templates up front so a broken override
// fails at startup.
func NewEmailNotifier(mailer Mailer, from string, opts ...EmailOption) (*EmailNotifier, error) {
	n := &EmailNotifier{
		mailer:     mailer,
		from:       from,
		paths:      DefaultLinkPaths(),
		overrides:  map[string]Template{},
		templates:  map[string]*compiledTemplate{},
		logger:     accounts.NopLogger(),
		timeFormat: time.RFC1123,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	templates := DefaultTemplates()
	for kind, t := range n.overrides {
		templates[kind] = t
	}
	for kind, t := range templates {
		compiled, err := compileTemplate(kind, t)
		if err != nil {
			return nil, err
		}
		n.templates[kind] = compiled
	}

	return n, nil
}

// Wait blocks until pending background deliveries finish.
func (n *EmailNotifier) Wait() {
	n.wg.Wait()
}

func (n *EmailNotifier) NotifyAccountLockedOut(ctx context.Context, account *accounts.Account) {
	n.send(ctx, KindLockout, account.Email, n.accountData(account))
}

func (n *EmailNotifier) NotifyAccountStatusChanged(ctx context.Context, account *accounts.Account, active bool) {
	kind := KindAccountBlocked
	if active {
		kind = KindAccountActivated
	}
	n.send(ctx, kind, account.Email, n.accountData(account))
}

func (n *EmailNotifier) NotifyAccessLevelChanged(ctx context.Context, account *accounts.Account, level accounts.AccessLevel, granted bool) {
	kind := KindAccessLevelRevoked
	if granted {
		kind = KindAccessLevelGranted
	}
	data := n.accountData(account)
	data["access_level"] = level
	n.send(ctx, kind, account.Email, data)
}

func (n *EmailNotifier) NotifyTokenIssued(ctx context.Context, account *accounts.Account, purpose accounts.TokenPurpose, token *accounts.VerificationToken) {
	if token == nil {
		return
	}

	to := account.Email
	kind := purpose
	switch purpose {
	case accounts.TokenPurposeRegistration:
		kind = KindRegistration
	case accounts.TokenPurposePasswordReset:
		kind = KindPasswordReset
		if token.Payload == accounts.PasswordResetForced {
			kind = KindForcedPasswordReset
		}
	case accounts.TokenPurposeEmailChange:
		kind = KindEmailChange
		to = token.Payload
	case accounts.TokenPurposeAccountUnblock:
		kind = KindAccountUnblock
	}

	data := n.accountData(account)
	data["link"] = n.link(purpose, token.Value)
	data["token"] = token.Value
	data["expires_at"] = token.ExpiresAt.Format(n.timeFormat)
	if purpose == accounts.TokenPurposeEmailChange {
		data["email"] = token.Payload
	}
	n.send(ctx, kind, to, data)
}

func (n *EmailNotifier) accountData(account *accounts.Account) pongo2.Context {
	return pongo2.Context{
		"login":   account.Login,
		"email":   account.Email,
		"name":    account.Name,
		"surname": account.Surname,
	}
}

func (n *EmailNotifier) link(purpose accounts.TokenPurpose, value string) string {
	if n.baseURL == "" {
		return value
	}
	return n.baseURL + n.paths[purpose] + "?token=" + url.QueryEscape(value)
}

func (n *EmailNotifier) send(ctx context.Context, kind, to string, data pongo2.Context) {
	tpl, ok := n.templates[kind]
	if !ok {
		n.logger.Warn("no email template", "kind", kind)
		return
	}

	subject, body, err := tpl.render(data)
	if err != nil {
		n.logger.Error("email render failed", "kind", kind, "error", err)
		return
	}

	email := &Email{
		Subject: subject,
		Body:    body,
		From:    n.from,
		To:      []string{to},
	}

	if !n.async {
		n.deliver(ctx, kind, email)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(context.WithoutCancel(ctx), kind, email)
	}()
}

func (n *EmailNotifier) deliver(ctx context.Context, kind string, email *Email) {
	if err := n.mailer.SendMail(ctx, email); err != nil {
		n.logger.Error("email delivery failed", "kind", kind, "to", email.To, "error", err)
		return
	}
	n.logger.Debug("email sent", "kind", kind, "to", email.To)
}
