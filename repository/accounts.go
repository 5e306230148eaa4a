package repository

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// updatableAccountColumns excludes the immutable id, login and created_at.
var updatableAccountColumns = []string{
	"email",
	"name",
	"surname",
	"password_hash",
	"active",
	"registered",
	"failed_login_attempts",
	"last_failed_login_at",
	"last_successful_login_at",
	"version",
	"updated_at",
}

// AccountRepository implements accounts.AccountRepository using Bun.
type AccountRepository struct {
	db bun.IDB
}

// NewAccountRepository creates a new repository.
func NewAccountRepository(db bun.IDB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error) {
	return r.findOne(ctx, "?TableAlias.id = ?", id)
}

func (r *AccountRepository) FindAccountByLogin(ctx context.Context, login string) (*accounts.Account, error) {
	return r.findOne(ctx, "?TableAlias.login = ?", login)
}

func (r *AccountRepository) FindAccountByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return r.findOne(ctx, "?TableAlias.email = ?", email)
}

func (r *AccountRepository) findOne(ctx context.Context, where string, arg any) (*accounts.Account, error) {
	account := new(accounts.Account)
	err := r.db.NewSelect().
		Model(account).
		Relation("AccessLevels", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ala.created_at ASC")
		}).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapReadError(err, accounts.ErrAccountNotFound, "failed to load account")
	}
	return account, nil
}

// PersistAccount inserts the account and any assignments it already carries.
func (r *AccountRepository) PersistAccount(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	record := account.Clone()
	if record.Version == 0 {
		record.Version = 1
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, mapAccountWriteError(err, "failed to insert account")
	}

	for _, assignment := range record.AccessLevels {
		assignment.AccountID = record.ID
		if _, err := r.db.NewInsert().Model(assignment).Exec(ctx); err != nil {
			return nil, mapAssignmentWriteError(err, "failed to insert access level assignment")
		}
	}

	return record, nil
}

// UpdateAccount writes the account only when the stored version matches.
func (r *AccountRepository) UpdateAccount(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	record := account.Clone()
	expected := record.Version
	record.Version = expected + 1

	res, err := r.db.NewUpdate().
		Model(record).
		Column(updatableAccountColumns...).
		WherePK().
		Where("?TableAlias.version = ?", expected).
		Exec(ctx)
	if err != nil {
		return nil, mapAccountWriteError(err, "failed to update account")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}

	if affected == 0 {
		exists, err := r.db.NewSelect().
			Model((*accounts.Account)(nil)).
			Where("?TableAlias.id = ?", record.ID).
			Exists(ctx)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check account existence")
		}
		if !exists {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, accounts.ErrOptimisticConflict
	}

	return record, nil
}
