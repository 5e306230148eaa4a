package repository

import (
	"context"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// TokenRepository implements accounts.TokenRepository using Bun. Only token
// hashes are stored.
type TokenRepository struct {
	db bun.IDB
}

// NewTokenRepository creates a new repository.
func NewTokenRepository(db bun.IDB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) IssueToken(ctx context.Context, req accounts.TokenRequest) (*accounts.VerificationToken, error) {
	token, err := accounts.NewVerificationToken(req)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert verification token")
	}
	return token, nil
}

// ConsumeToken marks the token consumed with a conditional update, so of two
// racing redemptions only one observes success.
func (r *TokenRepository) ConsumeToken(ctx context.Context, value string, purpose accounts.TokenPurpose, at time.Time) (*accounts.VerificationToken, error) {
	token := new(accounts.VerificationToken)
	err := r.db.NewSelect().
		Model(token).
		Where("?TableAlias.token_hash = ?", accounts.HashTokenValue(value)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapReadError(err, accounts.ErrTokenNotFound, "failed to load verification token")
	}

	if token.Purpose != purpose {
		return nil, accounts.ErrTokenNotFound
	}

	if err := token.Redeem(at); err != nil {
		return nil, err
	}

	res, err := r.db.NewUpdate().
		Model(token).
		Column("consumed_at").
		WherePK().
		Where("?TableAlias.consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	if affected == 0 {
		return nil, accounts.ErrTokenAlreadyUsed
	}

	token.Value = value
	return token, nil
}
