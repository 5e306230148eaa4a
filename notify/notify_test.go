package notify_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	sent []*notify.Email
	err  error
}

func (o *outbox) SendMail(_ context.Context, e *notify.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
	return o.err
}

func (o *outbox) last(t *testing.T) *notify.Email {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
	args  [][]any
}

func (l *captureLogger) record(msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
	l.args = append(l.args, args)
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record(msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record(msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record(msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record(msg, args) }

func testAccount() *accounts.Account {
	return &accounts.Account{
		ID:      uuid.New(),
		Login:   "alice",
		Email:   "alice@x.com",
		Name:    "Alice",
		Surname: "Smith",
	}
}

func testToken(purpose accounts.TokenPurpose, payload string) *accounts.VerificationToken {
	return &accounts.VerificationToken{
		ID:        uuid.New(),
		Purpose:   purpose,
		Value:     "tok+en/value",
		Payload:   payload,
		ExpiresAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmailNotifierRegistrationLink(t *testing.T) {
	box := &outbox{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test", notify.WithBaseURL("https://booking.test/"))
	require.NoError(t, err)

	account := testAccount()
	n.NotifyTokenIssued(context.Background(), account, accounts.TokenPurposeRegistration, testToken(accounts.TokenPurposeRegistration, ""))

	email := box.last(t)
	assert.Equal(t, "noreply@booking.test", email.From)
	assert.Equal(t, []string{"alice@x.com"}, email.To)
	assert.Equal(t, "Confirm your account", email.Subject)
	assert.Contains(t, email.Body, "Hello Alice,")
	assert.Contains(t, email.Body, "https://booking.test/account/confirm?token=tok%2Ben%2Fvalue")
	assert.Contains(t, email.Body, "Wed, 01 Jul 2026 10:00:00 UTC")
}

func TestEmailNotifierEmailChangeGoesToNewAddress(t *testing.T) {
	box := &outbox{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test")
	require.NoError(t, err)

	n.NotifyTokenIssued(context.Background(), testAccount(), accounts.TokenPurposeEmailChange, testToken(accounts.TokenPurposeEmailChange, "alice@new.com"))

	email := box.last(t)
	assert.Equal(t, []string{"alice@new.com"}, email.To)
	assert.Contains(t, email.Body, "use alice@new.com for alice")
	// without a base url the raw value is the link
	assert.Contains(t, email.Body, "tok+en/value")
}

func TestEmailNotifierForcedReset(t *testing.T) {
	box := &outbox{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test",
		notify.WithBaseURL("https://booking.test"),
		notify.WithLinkPath(accounts.TokenPurposePasswordReset, "/reset"),
	)
	require.NoError(t, err)

	ctx := context.Background()
	n.NotifyTokenIssued(ctx, testAccount(), accounts.TokenPurposePasswordReset, testToken(accounts.TokenPurposePasswordReset, ""))
	assert.Equal(t, "Reset your password", box.last(t).Subject)
	assert.Contains(t, box.last(t).Body, "https://booking.test/reset?token=")

	n.NotifyTokenIssued(ctx, testAccount(), accounts.TokenPurposePasswordReset, testToken(accounts.TokenPurposePasswordReset, accounts.PasswordResetForced))
	assert.Equal(t, "Your password must be changed", box.last(t).Subject)
}

func TestEmailNotifierLifecycleMessages(t *testing.T) {
	box := &outbox{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test")
	require.NoError(t, err)

	ctx := context.Background()
	account := testAccount()

	n.NotifyAccessLevelChanged(ctx, account, accounts.AccessLevelPhotographer, true)
	assert.Equal(t, "Access level granted", box.last(t).Subject)
	assert.Contains(t, box.last(t).Body, "granted the PHOTOGRAPHER access level")

	n.NotifyAccessLevelChanged(ctx, account, accounts.AccessLevelPhotographer, false)
	assert.Equal(t, "Access level revoked", box.last(t).Subject)

	n.NotifyAccountStatusChanged(ctx, account, true)
	assert.Equal(t, "Your account is active", box.last(t).Subject)

	n.NotifyAccountLockedOut(ctx, account)
	assert.Contains(t, box.last(t).Body, "repeated failed login attempts")

	assert.Len(t, box.sent, 4)
}

func TestEmailNotifierTemplateOverride(t *testing.T) {
	box := &outbox{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test", notify.WithTemplate(notify.KindLockout, notify.Template{
		Subject: "Locked: {{ login }}",
		Body:    "<{{ email }}>",
	}))
	require.NoError(t, err)

	n.NotifyAccountLockedOut(context.Background(), testAccount())
	assert.Equal(t, "Locked: alice", box.last(t).Subject)
	assert.Equal(t, "<alice@x.com>", box.last(t).Body, "plain text is not escaped")

	_, err = notify.NewEmailNotifier(box, "noreply@booking.test", notify.WithTemplate(notify.KindLockout, notify.Template{
		Subject: "{% if %}",
		Body:    "",
	}))
	assert.Error(t, err)
}

func TestEmailNotifierAsyncDeliveryFailureIsLogged(t *testing.T) {
	box := &outbox{err: errors.New("relay down")}
	logger := &captureLogger{}
	n, err := notify.NewEmailNotifier(box, "noreply@booking.test", notify.WithAsync(true), notify.WithEmailLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	n.NotifyAccountStatusChanged(ctx, testAccount(), false)
	cancel()
	n.Wait()

	assert.Len(t, box.sent, 1)
	assert.Contains(t, logger.lines, "email delivery failed")
}

func TestLogNotifierHidesTokensByDefault(t *testing.T) {
	ctx := context.Background()
	token := testToken(accounts.TokenPurposePasswordReset, "")

	quiet := &captureLogger{}
	notify.NewLogNotifier(quiet, false).NotifyTokenIssued(ctx, testAccount(), accounts.TokenPurposePasswordReset, token)
	require.Len(t, quiet.args, 1)
	for _, arg := range quiet.args[0] {
		if s, ok := arg.(string); ok {
			assert.False(t, strings.Contains(s, token.Value))
		}
	}

	verbose := &captureLogger{}
	notify.NewLogNotifier(verbose, true).NotifyTokenIssued(ctx, testAccount(), accounts.TokenPurposePasswordReset, token)
	require.Len(t, verbose.args, 1)
	assert.Contains(t, verbose.args[0], token.Value)
}

func TestMailerFunc(t *testing.T) {
	var got *notify.Email
	mailer := notify.MailerFunc(func(_ context.Context, e *notify.Email) error {
		got = e
		return nil
	})

	require.NoError(t, mailer.SendMail(context.Background(), &notify.Email{Subject: "hi"}))
	assert.Equal(t, "hi", got.Subject)
}
