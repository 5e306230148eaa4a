package accounts_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/memstore"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type statusChange struct {
	Login  string
	Active bool
}

type levelChange struct {
	Login   string
	Level   accounts.AccessLevel
	Granted bool
}

type issuedToken struct {
	Login   string
	Purpose accounts.TokenPurpose
	Token   *accounts.VerificationToken
}

// recordingNotifier captures every notification it receives.
type recordingNotifier struct {
	mu       sync.Mutex
	lockouts []string
	statuses []statusChange
	levels   []levelChange
	tokens   []issuedToken
}

func (n *recordingNotifier) NotifyAccountLockedOut(_ context.Context, account *accounts.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lockouts = append(n.lockouts, account.Login)
}

func (n *recordingNotifier) NotifyAccountStatusChanged(_ context.Context, account *accounts.Account, active bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, statusChange{Login: account.Login, Active: active})
}

func (n *recordingNotifier) NotifyAccessLevelChanged(_ context.Context, account *accounts.Account, level accounts.AccessLevel, granted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, levelChange{Login: account.Login, Level: level, Granted: granted})
}

func (n *recordingNotifier) NotifyTokenIssued(_ context.Context, account *accounts.Account, purpose accounts.TokenPurpose, token *accounts.VerificationToken) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, issuedToken{Login: account.Login, Purpose: purpose, Token: token})
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lockouts) + len(n.statuses) + len(n.levels) + len(n.tokens)
}

func (n *recordingNotifier) tokensFor(purpose accounts.TokenPurpose) []issuedToken {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []issuedToken{}
	for _, t := range n.tokens {
		if t.Purpose == purpose {
			out = append(out, t)
		}
	}
	return out
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []accounts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	manager  *accounts.Manager
	store    *memstore.Store
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	sink     *recordingSink
	opts     []accounts.ManagerOption
}

func newFixture(t *testing.T, opts ...accounts.ManagerOption) *fixture {
	t.Helper()

	f := &fixture{
		store:    memstore.New(),
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
	}

	base := []accounts.ManagerOption{
		accounts.WithClock(f.clock.Now),
		accounts.WithLogger(testLogger{}),
		accounts.WithNotifier(f.notifier),
		accounts.WithActivitySink(f.sink),
		accounts.WithCredentialPolicy(accounts.NewCredentialPolicy(accounts.WithHashCost(bcrypt.MinCost))),
	}
	f.opts = append(base, opts...)
	f.manager = accounts.NewManager(f.store, f.opts...)
	return f
}

// managerOn builds a manager sharing the fixture's collaborators over store.
func (f *fixture) managerOn(store accounts.Store) *accounts.Manager {
	return accounts.NewManager(store, f.opts...)
}

func candidate(login, email, password string) accounts.AccountCandidate {
	return accounts.AccountCandidate{
		Login:    login,
		Email:    email,
		Name:     "Test",
		Surname:  "User",
		Password: password,
	}
}

// registerConfirmed creates an active, registered account.
func (f *fixture) registerConfirmed(t *testing.T, login, email, password string) *accounts.Account {
	t.Helper()
	reg, err := f.manager.RegisterByAdmin(context.Background(), candidate(login, email, password), accounts.InitialStatus{
		Active:     true,
		Registered: true,
	})
	require.NoError(t, err)
	require.Nil(t, reg.Token)
	return reg.Account
}

func (f *fixture) find(t *testing.T, login string) *accounts.Account {
	t.Helper()
	account, err := f.manager.FindAccount(context.Background(), login)
	require.NoError(t, err)
	return account
}

// flakyStore fails the next conflicts account updates with ErrOptimisticConflict.
type flakyStore struct {
	accounts.Store
	conflicts atomic.Int32
}

func newFlakyStore(inner accounts.Store, conflicts int32) *flakyStore {
	s := &flakyStore{Store: inner}
	s.conflicts.Store(conflicts)
	return s
}

func (s *flakyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx accounts.Store) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx accounts.Store) error {
		return fn(ctx, &flakyTx{Store: tx, parent: s})
	})
}

type flakyTx struct {
	accounts.Store
	parent *flakyStore
}

func (t *flakyTx) Accounts() accounts.AccountRepository {
	return flakyAccounts{AccountRepository: t.Store.Accounts(), parent: t.parent}
}

type flakyAccounts struct {
	accounts.AccountRepository
	parent *flakyStore
}

func (r flakyAccounts) UpdateAccount(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	if r.parent.conflicts.Add(-1) >= 0 {
		return nil, accounts.ErrOptimisticConflict
	}
	return r.AccountRepository.UpdateAccount(ctx, account)
}
