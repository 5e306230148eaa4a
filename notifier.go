package accounts

import "context"

// Notifier receives lifecycle events after the transaction that produced
// them committed. Delivery is best effort: implementations report their own
// failures and never block the operation that emitted the event.
type Notifier interface {
	NotifyAccountLockedOut(ctx context.Context, account *Account)
	NotifyAccountStatusChanged(ctx context.Context, account *Account, active bool)
	NotifyAccessLevelChanged(ctx context.Context, account *Account, level AccessLevel, granted bool)
	// NotifyTokenIssued carries the token with its raw Value so it can be
	// delivered to the account owner.
	NotifyTokenIssued(ctx context.Context, account *Account, purpose TokenPurpose, token *VerificationToken)
}

type nopNotifier struct{}

func (nopNotifier) NotifyAccountLockedOut(context.Context, *Account)                              {}
func (nopNotifier) NotifyAccountStatusChanged(context.Context, *Account, bool)                    {}
func (nopNotifier) NotifyAccessLevelChanged(context.Context, *Account, AccessLevel, bool)         {}
func (nopNotifier) NotifyTokenIssued(context.Context, *Account, TokenPurpose, *VerificationToken) {}

// NopNotifier drops every event.
func NopNotifier() Notifier {
	return nopNotifier{}
}

// MultiNotifier fans events out to every notifier in order.
type MultiNotifier []Notifier

// NewMultiNotifier skips nil entries.
func NewMultiNotifier(notifiers ...Notifier) MultiNotifier {
	out := make(MultiNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m MultiNotifier) NotifyAccountLockedOut(ctx context.Context, account *Account) {
	for _, n := range m {
		n.NotifyAccountLockedOut(ctx, account)
	}
}

func (m MultiNotifier) NotifyAccountStatusChanged(ctx context.Context, account *Account, active bool) {
	for _, n := range m {
		n.NotifyAccountStatusChanged(ctx, account, active)
	}
}

func (m MultiNotifier) NotifyAccessLevelChanged(ctx context.Context, account *Account, level AccessLevel, granted bool) {
	for _, n := range m {
		n.NotifyAccessLevelChanged(ctx, account, level, granted)
	}
}

func (m MultiNotifier) NotifyTokenIssued(ctx context.Context, account *Account, purpose TokenPurpose, token *VerificationToken) {
	for _, n := range m {
		n.NotifyTokenIssued(ctx, account, purpose, token)
	}
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
