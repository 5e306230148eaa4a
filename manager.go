package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// LockoutThreshold is the number of consecutive failed logins that blocks an account.
const LockoutThreshold = 3

const (
	DefaultRegistrationTokenTTL  = 24 * time.Hour
	DefaultPasswordResetTokenTTL = time.Hour
	DefaultEmailChangeTokenTTL   = 24 * time.Hour
	DefaultUnblockTokenTTL       = 24 * time.Hour
	DefaultOperationTimeout      = 10 * time.Second
)

// Manager orchestrates the account lifecycle. Every operation loads the
// current aggregate inside one store transaction, writes through the
// versioned repositories and dispatches notifications only after commit.
type Manager struct {
	store            Store
	tokens           TokenRepository
	policy           *CredentialPolicy
	registry         *AccessLevelRegistry
	notifier         Notifier
	activity         ActivitySink
	logger           Logger
	now              func() time.Time
	ttl              map[TokenPurpose]time.Duration
	timeout          time.Duration
	hashedIDs        bool
	unblockOnLockout bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for timestamps and token expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger overrides the logger used for post commit failures.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithNotifier(notifier Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = normalizeNotifier(notifier)
	}
}

// WithActivitySink records login, password and profile events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activity = normalizeActivitySink(sink)
	}
}

func WithCredentialPolicy(policy *CredentialPolicy) ManagerOption {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

func WithAccessLevelRegistry(registry *AccessLevelRegistry) ManagerOption {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithTokenRepository issues and redeems tokens outside the store, for
// example in redis. Such tokens are not part of the store transaction.
func WithTokenRepository(tokens TokenRepository) ManagerOption {
	return func(m *Manager) {
		m.tokens = tokens
	}
}

// WithTokenTTL overrides the lifetime of tokens issued for purpose.
func WithTokenTTL(purpose TokenPurpose, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl[purpose] = ttl
		}
	}
}

// WithHashedIDs derives account ids from the login with hashid.
func WithHashedIDs(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.hashedIDs = enabled
	}
}

// WithUnblockTokenOnLockout controls whether a lockout issues an account
// unblock token. Enabled by default.
func WithUnblockTokenOnLockout(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.unblockOnLockout = enabled
	}
}

// WithOperationTimeout bounds each operation.
func WithOperationTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// NewManager creates a lifecycle manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		notifier: nopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		ttl: map[TokenPurpose]time.Duration{
			TokenPurposeRegistration:   DefaultRegistrationTokenTTL,
			TokenPurposePasswordReset:  DefaultPasswordResetTokenTTL,
			TokenPurposeEmailChange:    DefaultEmailChangeTokenTTL,
			TokenPurposeAccountUnblock: DefaultUnblockTokenTTL,
		},
		timeout:          DefaultOperationTimeout,
		unblockOnLockout: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.policy == nil {
		m.policy = NewCredentialPolicy()
	}
	if m.registry == nil {
		m.registry = NewAccessLevelRegistry(WithRegistryClock(m.now))
	}

	return m
}

// CredentialPolicy returns the policy in use.
func (m *Manager) CredentialPolicy() *CredentialPolicy {
	return m.policy
}

// AccessLevels returns the registry in use.
func (m *Manager) AccessLevels() *AccessLevelRegistry {
	return m.registry
}

// outbox collects side effects that must only happen after commit.
type outbox struct {
	notifications []func(ctx context.Context, n Notifier)
	events        []ActivityEvent
}

func (o *outbox) notify(fn func(ctx context.Context, n Notifier)) {
	o.notifications = append(o.notifications, fn)
}

func (o *outbox) record(event ActivityEvent) {
	o.events = append(o.events, event)
}

type txFunc func(ctx context.Context, tx Store, box *outbox) error

// run executes fn in one transaction and flushes the outbox on commit.
func (m *Manager) run(ctx context.Context, op string, fn txFunc) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during "+op,
		)
	default:
		return m.execute(ctx, op, fn)
	}
}

func (m *Manager) execute(ctx context.Context, op string, fn txFunc) error {
	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var box *outbox
	err := m.store.RunInTx(txCtx, func(ctx context.Context, tx Store) error {
		box = &outbox{}
		return fn(ctx, tx, box)
	})
	if err != nil {
		return wrapInternal(err, op+" transaction failed")
	}

	m.flush(ctx, box)
	return nil
}

func (m *Manager) flush(ctx context.Context, box *outbox) {
	if box == nil {
		return
	}
	for _, notify := range box.notifications {
		notify(ctx, m.notifier)
	}
	for _, event := range box.events {
		if err := m.activity.Record(ctx, event); err != nil {
			m.logger.Warn("activity sink error", "event", event.EventType, "error", err)
		}
	}
}

func (m *Manager) tokenRepository(tx Store) TokenRepository {
	if m.tokens != nil {
		return m.tokens
	}
	return tx.Tokens()
}

func (m *Manager) issueToken(ctx context.Context, tx Store, box *outbox, account *Account, purpose TokenPurpose, payload string) (*VerificationToken, error) {
	repo := m.tokenRepository(tx)
	if repo == nil {
		return nil, ErrTokenStoreMissing
	}

	token, err := repo.IssueToken(ctx, TokenRequest{
		AccountID: account.ID,
		Purpose:   purpose,
		TTL:       m.ttl[purpose],
		Payload:   payload,
		IssuedAt:  m.now(),
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to issue verification token")
	}

	snapshot := account.Clone()
	issued := token.Clone()
	box.notify(func(ctx context.Context, n Notifier) {
		n.NotifyTokenIssued(ctx, snapshot, purpose, issued)
	})
	return token, nil
}

func (m *Manager) consumeToken(ctx context.Context, tx Store, value string, purpose TokenPurpose) (*VerificationToken, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	repo := m.tokenRepository(tx)
	if repo == nil {
		return nil, ErrTokenStoreMissing
	}
	token, err := repo.ConsumeToken(ctx, value, purpose, m.now())
	if err != nil {
		return nil, wrapInternal(err, "failed to consume verification token")
	}
	return token, nil
}

func (m *Manager) findByLogin(ctx context.Context, tx Store, login string) (*Account, error) {
	account, err := tx.Accounts().FindAccountByLogin(ctx, login)
	if err != nil {
		return nil, wrapInternal(err, "failed to load account")
	}
	return account, nil
}

func (m *Manager) findByID(ctx context.Context, tx Store, id uuid.UUID) (*Account, error) {
	account, err := tx.Accounts().FindAccountByID(ctx, id)
	if err != nil {
		return nil, wrapInternal(err, "failed to load account")
	}
	return account, nil
}

// save writes account through the versioned update and returns the stored copy.
func (m *Manager) save(ctx context.Context, tx Store, account *Account) (*Account, error) {
	account.UpdatedAt = m.now()
	updated, err := tx.Accounts().UpdateAccount(ctx, account)
	if err != nil {
		return nil, wrapInternal(err, "failed to update account")
	}
	return updated, nil
}

func (m *Manager) newAccountID(login string) uuid.UUID {
	if m.hashedIDs {
		if id, err := hashid.NewUUID(login); err == nil {
			return id
		}
		m.logger.Warn("hashid generation failed, falling back to random id", "login", login)
	}
	return uuid.New()
}

func (m *Manager) event(eventType ActivityEventType, account *Account, metadata map[string]any) ActivityEvent {
	return newActivityEvent(eventType, account, m.now(), metadata)
}

// FindAccount returns the aggregate addressed by login.
func (m *Manager) FindAccount(ctx context.Context, login string) (*Account, error) {
	var found *Account
	err := m.run(ctx, "find account", func(ctx context.Context, tx Store, _ *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}
		found = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ActiveAccessLevels lists the active levels of login in catalog order.
func (m *Manager) ActiveAccessLevels(ctx context.Context, login string) ([]AccessLevel, error) {
	account, err := m.FindAccount(ctx, login)
	if err != nil {
		return nil, err
	}
	return m.registry.ListActiveRoles(account), nil
}
