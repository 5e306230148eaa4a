package repository

import (
	"database/sql"
	"errors"
	"strings"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// uniqueViolation maps a unique constraint failure to the column set it
// guards, for postgres (pgconn) and sqlite (driver message).
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}

	msg := err.Error()
	if idx := strings.Index(msg, "UNIQUE constraint failed: "); idx >= 0 {
		return msg[idx+len("UNIQUE constraint failed: "):], true
	}
	return "", false
}

func mapAccountWriteError(err error, msg string) error {
	if detail, ok := uniqueViolation(err); ok {
		switch {
		case strings.Contains(detail, "login"):
			return accounts.ErrDuplicateLogin
		case strings.Contains(detail, "email"):
			return accounts.ErrDuplicateEmail
		case strings.Contains(detail, "accounts_pkey"), strings.Contains(detail, "accounts.id"):
			return accounts.ErrOptimisticConflict
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func mapAssignmentWriteError(err error, msg string) error {
	if _, ok := uniqueViolation(err); ok {
		return accounts.ErrOptimisticConflict
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func mapReadError(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
