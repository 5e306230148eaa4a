package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountRegistered    ActivityEventType = "account.registered"
	ActivityEventAccountConfirmed     ActivityEventType = "account.registration.confirmed"
	ActivityEventAccountLockedOut     ActivityEventType = "account.locked_out"
	ActivityEventAccountStatusChanged ActivityEventType = "account.status.changed"
	ActivityEventAccessLevelGranted   ActivityEventType = "account.access_level.granted"
	ActivityEventAccessLevelRevoked   ActivityEventType = "account.access_level.revoked"
	ActivityEventTokenIssued          ActivityEventType = "account.token.issued"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventPasswordReset        ActivityEventType = "auth.password.reset"
	ActivityEventProfileUpdated       ActivityEventType = "account.profile.updated"
	ActivityEventEmailChanged         ActivityEventType = "account.email.changed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  string
	Login      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func newActivityEvent(eventType ActivityEventType, account *Account, at time.Time, metadata map[string]any) ActivityEvent {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: at,
	}
	if account != nil {
		event.AccountID = account.ID.String()
		event.Login = account.Login
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	return event
}

// ActivityNotifier records every notification as an ActivityEvent. Raw
// token values never reach the sink.
type ActivityNotifier struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

// NewActivityNotifier returns a Notifier backed by sink.
func NewActivityNotifier(sink ActivitySink, logger Logger) *ActivityNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &ActivityNotifier{
		sink:   normalizeActivitySink(sink),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for OccurredAt.
func (n *ActivityNotifier) WithClock(now func() time.Time) *ActivityNotifier {
	if now != nil {
		n.now = now
	}
	return n
}

func (n *ActivityNotifier) NotifyAccountLockedOut(ctx context.Context, account *Account) {
	n.record(ctx, newActivityEvent(ActivityEventAccountLockedOut, account, n.now(), nil))
}

func (n *ActivityNotifier) NotifyAccountStatusChanged(ctx context.Context, account *Account, active bool) {
	n.record(ctx, newActivityEvent(ActivityEventAccountStatusChanged, account, n.now(), map[string]any{
		"active": active,
	}))
}

func (n *ActivityNotifier) NotifyAccessLevelChanged(ctx context.Context, account *Account, level AccessLevel, granted bool) {
	eventType := ActivityEventAccessLevelRevoked
	if granted {
		eventType = ActivityEventAccessLevelGranted
	}
	n.record(ctx, newActivityEvent(eventType, account, n.now(), map[string]any{
		"access_level": level,
	}))
}

func (n *ActivityNotifier) NotifyTokenIssued(ctx context.Context, account *Account, purpose TokenPurpose, token *VerificationToken) {
	metadata := map[string]any{
		"purpose": purpose,
	}
	if token != nil {
		metadata["token_id"] = token.ID.String()
		metadata["expires_at"] = token.ExpiresAt
	}
	n.record(ctx, newActivityEvent(ActivityEventTokenIssued, account, n.now(), metadata))
}

func (n *ActivityNotifier) record(ctx context.Context, event ActivityEvent) {
	if err := n.sink.Record(ctx, event); err != nil {
		n.logger.Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
