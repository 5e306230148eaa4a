package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository persists the Account aggregate. Accounts are never deleted.
type AccountRepository interface {
	FindAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindAccountByLogin returns ErrAccountNotFound when absent.
	FindAccountByLogin(ctx context.Context, login string) (*Account, error)
	// FindAccountByEmail returns ErrAccountNotFound when absent.
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	// PersistAccount inserts a new account and its assignments. Uniqueness
	// violations surface as ErrDuplicateLogin or ErrDuplicateEmail.
	PersistAccount(ctx context.Context, account *Account) (*Account, error)
	// UpdateAccount writes the account when its stored version still equals
	// account.Version and returns the copy with the advanced version.
	// A stale version yields ErrOptimisticConflict.
	UpdateAccount(ctx context.Context, account *Account) (*Account, error)
}

// AssignmentRepository persists access level assignments.
type AssignmentRepository interface {
	// FindAssignment returns nil, nil when the pair was never granted.
	FindAssignment(ctx context.Context, accountID uuid.UUID, level AccessLevel) (*AccessLevelAssignment, error)
	ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*AccessLevelAssignment, error)
	// PersistAssignment inserts a new row. A row that already exists for the
	// pair yields ErrOptimisticConflict.
	PersistAssignment(ctx context.Context, assignment *AccessLevelAssignment) (*AccessLevelAssignment, error)
	UpdateAssignment(ctx context.Context, assignment *AccessLevelAssignment) (*AccessLevelAssignment, error)
}

// TokenRequest describes a token to be issued.
type TokenRequest struct {
	AccountID uuid.UUID
	Purpose   TokenPurpose
	TTL       time.Duration
	Payload   string
	IssuedAt  time.Time
}

// TokenRepository issues and redeems verification tokens.
type TokenRepository interface {
	// IssueToken stores a new token and returns it with its raw Value set.
	IssueToken(ctx context.Context, req TokenRequest) (*VerificationToken, error)
	// ConsumeToken redeems value exactly once. Unknown values and values
	// issued for another purpose yield ErrTokenNotFound; otherwise expiry,
	// evaluated against at, is reported before single use.
	ConsumeToken(ctx context.Context, value string, purpose TokenPurpose, at time.Time) (*VerificationToken, error)
}

// Store groups the repositories behind one transaction boundary.
type Store interface {
	Accounts() AccountRepository
	Assignments() AssignmentRepository
	Tokens() TokenRepository
	// RunInTx runs fn against a transactional view of the store. A non nil
	// error from fn rolls back every write made through tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
