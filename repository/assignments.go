package repository

import (
	"context"
	"database/sql"
	"errors"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AssignmentRepository implements accounts.AssignmentRepository using Bun.
type AssignmentRepository struct {
	db bun.IDB
}

// NewAssignmentRepository creates a new repository.
func NewAssignmentRepository(db bun.IDB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) FindAssignment(ctx context.Context, accountID uuid.UUID, level accounts.AccessLevel) (*accounts.AccessLevelAssignment, error) {
	assignment := new(accounts.AccessLevelAssignment)
	err := r.db.NewSelect().
		Model(assignment).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.access_level = ?", level).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load access level assignment")
	}
	return assignment, nil
}

func (r *AssignmentRepository) ListAssignments(ctx context.Context, accountID uuid.UUID) ([]*accounts.AccessLevelAssignment, error) {
	assignments := []*accounts.AccessLevelAssignment{}
	err := r.db.NewSelect().
		Model(&assignments).
		Where("?TableAlias.account_id = ?", accountID).
		Order("ala.created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list access level assignments")
	}
	return assignments, nil
}

// PersistAssignment inserts a new row. The (account, level) unique index
// turns a concurrent first grant into ErrOptimisticConflict.
func (r *AssignmentRepository) PersistAssignment(ctx context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	record := assignment.Clone()
	if record.Version == 0 {
		record.Version = 1
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, mapAssignmentWriteError(err, "failed to insert access level assignment")
	}
	return record, nil
}

func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	record := assignment.Clone()
	expected := record.Version
	record.Version = expected + 1

	res, err := r.db.NewUpdate().
		Model(record).
		Column("active", "version", "updated_at").
		WherePK().
		Where("?TableAlias.version = ?", expected).
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update access level assignment")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	if affected == 0 {
		return nil, accounts.ErrOptimisticConflict
	}
	return record, nil
}
