package accounts_test

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockNotifier implements accounts.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyAccountLockedOut(ctx context.Context, account *accounts.Account) {
	m.Called(ctx, account)
}

func (m *MockNotifier) NotifyAccountStatusChanged(ctx context.Context, account *accounts.Account, active bool) {
	m.Called(ctx, account, active)
}

func (m *MockNotifier) NotifyAccessLevelChanged(ctx context.Context, account *accounts.Account, level accounts.AccessLevel, granted bool) {
	m.Called(ctx, account, level, granted)
}

func (m *MockNotifier) NotifyTokenIssued(ctx context.Context, account *accounts.Account, purpose accounts.TokenPurpose, token *accounts.VerificationToken) {
	m.Called(ctx, account, purpose, token)
}

// MockAssignments implements accounts.AssignmentRepository
type MockAssignments struct {
	mock.Mock
}

func (m *MockAssignments) FindAssignment(ctx context.Context, accountID uuid.UUID, level accounts.AccessLevel) (*accounts.AccessLevelAssignment, error) {
	args := m.Called(ctx, accountID, level)
	if v := args.Get(0); v != nil {
		return v.(*accounts.AccessLevelAssignment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAssignments) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*accounts.AccessLevelAssignment, error) {
	args := m.Called(ctx, accountID)
	if v := args.Get(0); v != nil {
		return v.([]*accounts.AccessLevelAssignment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAssignments) PersistAssignment(ctx context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	args := m.Called(ctx, assignment)
	switch v := args.Get(0).(type) {
	case func(context.Context, *accounts.AccessLevelAssignment) *accounts.AccessLevelAssignment:
		return v(ctx, assignment), args.Error(1)
	case *accounts.AccessLevelAssignment:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAssignments) UpdateAssignment(ctx context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	args := m.Called(ctx, assignment)
	if v := args.Get(0); v != nil {
		return v.(*accounts.AccessLevelAssignment), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements accounts.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
