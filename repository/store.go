package repository

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Store implements accounts.Store on top of bun. It works with a *bun.DB or
// a bun.Tx; transactions opened from a bun.Tx become savepoints.
type Store struct {
	db          bun.IDB
	accounts    *AccountRepository
	assignments *AssignmentRepository
	tokens      *TokenRepository
}

// NewStore creates a store over db.
func NewStore(db bun.IDB) *Store {
	return &Store{
		db:          db,
		accounts:    NewAccountRepository(db),
		assignments: NewAssignmentRepository(db),
		tokens:      NewTokenRepository(db),
	}
}

func (s *Store) Accounts() accounts.AccountRepository {
	return s.accounts
}

func (s *Store) Assignments() accounts.AssignmentRepository {
	return s.assignments
}

func (s *Store) Tokens() accounts.TokenRepository {
	return s.tokens
}

// RunInTx runs fn inside a database transaction bound to a new Store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx accounts.Store) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before transaction")
	default:
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, NewStore(tx))
		})
	}
}
