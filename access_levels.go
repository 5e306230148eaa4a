package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccessLevelRegistry owns the access level catalog and the grant/revoke
// transitions of the per account assignments:
//
//	absent            --Grant-->  assigned(active)
//	assigned(active)  --Revoke--> assigned(inactive)
//	assigned(inactive)--Grant-->  assigned(active)
//
// Rows are toggled, never deleted.
type AccessLevelRegistry struct {
	catalog []AccessLevel
	index   map[AccessLevel]int
	now     func() time.Time
}

// AccessLevelRegistryOption configures the registry.
type AccessLevelRegistryOption func(*AccessLevelRegistry)

// WithRegistryClock sets the clock used to stamp assignments.
func WithRegistryClock(now func() time.Time) AccessLevelRegistryOption {
	return func(r *AccessLevelRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCatalog replaces the default catalog. Order is preserved and duplicates dropped.
func WithCatalog(levels ...AccessLevel) AccessLevelRegistryOption {
	return func(r *AccessLevelRegistry) {
		r.setCatalog(levels)
	}
}

// NewAccessLevelRegistry returns a registry over DefaultAccessLevels.
func NewAccessLevelRegistry(opts ...AccessLevelRegistryOption) *AccessLevelRegistry {
	r := &AccessLevelRegistry{
		now: time.Now,
	}
	r.setCatalog(DefaultAccessLevels())
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *AccessLevelRegistry) setCatalog(levels []AccessLevel) {
	r.catalog = make([]AccessLevel, 0, len(levels))
	r.index = make(map[AccessLevel]int, len(levels))
	for _, level := range levels {
		if _, ok := r.index[level]; ok || level == "" {
			continue
		}
		r.index[level] = len(r.catalog)
		r.catalog = append(r.catalog, level)
	}
}

// Catalog returns a copy of the known levels in display order.
func (r *AccessLevelRegistry) Catalog() []AccessLevel {
	out := make([]AccessLevel, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// Lookup resolves a level name, case insensitive.
func (r *AccessLevelRegistry) Lookup(name string) (AccessLevel, error) {
	level := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := r.index[level]; !ok {
		return "", ErrUnknownAccessLevel
	}
	return level, nil
}

// Grant activates level for account. The repository is the authority on the
// current row; the account collection is updated to match what was written.
func (r *AccessLevelRegistry) Grant(ctx context.Context, repo AssignmentRepository, account *Account, level AccessLevel) (*AccessLevelAssignment, error) {
	level, err := r.Lookup(level)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	current, err := repo.FindAssignment(ctx, account.ID, level)
	if err != nil {
		return nil, wrapInternal(err, "failed to load access level assignment")
	}

	now := r.now()

	if current == nil {
		created, err := repo.PersistAssignment(ctx, &AccessLevelAssignment{
			ID:        uuid.New(),
			AccountID: account.ID,
			Level:     level,
			Active:    true,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, wrapInternal(err, "failed to persist access level assignment")
		}
		account.SetAssignment(created.Clone())
		return created, nil
	}

	if current.Active {
		account.SetAssignment(current.Clone())
		return nil, ErrAlreadyGranted
	}

	return r.toggle(ctx, repo, account, current, true, now)
}

// Revoke deactivates level for account.
func (r *AccessLevelRegistry) Revoke(ctx context.Context, repo AssignmentRepository, account *Account, level AccessLevel) (*AccessLevelAssignment, error) {
	level, err := r.Lookup(level)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	current, err := repo.FindAssignment(ctx, account.ID, level)
	if err != nil {
		return nil, wrapInternal(err, "failed to load access level assignment")
	}

	if current == nil {
		return nil, ErrNeverGranted
	}

	if !current.Active {
		account.SetAssignment(current.Clone())
		return nil, ErrAlreadyRevoked
	}

	return r.toggle(ctx, repo, account, current, false, r.now())
}

func (r *AccessLevelRegistry) toggle(ctx context.Context, repo AssignmentRepository, account *Account, current *AccessLevelAssignment, active bool, now time.Time) (*AccessLevelAssignment, error) {
	next := current.Clone()
	next.Active = active
	next.UpdatedAt = now

	updated, err := repo.UpdateAssignment(ctx, next)
	if err != nil {
		return nil, wrapInternal(err, "failed to update access level assignment")
	}
	account.SetAssignment(updated.Clone())
	return updated, nil
}

// HasActiveRole reports whether account holds level actively.
func (r *AccessLevelRegistry) HasActiveRole(account *Account, level AccessLevel) bool {
	if _, ok := r.index[level]; !ok {
		return false
	}
	return account.HasActiveAccessLevel(level)
}

// ListActiveRoles returns the active levels of account in catalog order.
func (r *AccessLevelRegistry) ListActiveRoles(account *Account) []AccessLevel {
	out := []AccessLevel{}
	if account == nil {
		return out
	}
	for _, level := range r.catalog {
		if account.HasActiveAccessLevel(level) {
			out = append(out, level)
		}
	}
	return out
}
