// Package memstore is an in memory accounts.Store. Transactions work on a
// copy of the dataset that replaces the shared one on commit, so a failed
// transaction leaves no trace. Writers are serialized by a single mutex.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type assignmentKey struct {
	accountID uuid.UUID
	level     accounts.AccessLevel
}

type dataset struct {
	accounts    map[uuid.UUID]*accounts.Account
	logins      map[string]uuid.UUID
	emails      map[string]uuid.UUID
	assignments map[assignmentKey]*accounts.AccessLevelAssignment
	tokens      map[string]*accounts.VerificationToken
}

func newDataset() *dataset {
	return &dataset{
		accounts:    map[uuid.UUID]*accounts.Account{},
		logins:      map[string]uuid.UUID{},
		emails:      map[string]uuid.UUID{},
		assignments: map[assignmentKey]*accounts.AccessLevelAssignment{},
		tokens:      map[string]*accounts.VerificationToken{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.accounts {
		c.accounts[k] = v.Clone()
	}
	for k, v := range d.logins {
		c.logins[k] = v
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v.Clone()
	}
	for k, v := range d.tokens {
		c.tokens[k] = v.Clone()
	}
	return c
}

type state struct {
	mu   sync.Mutex
	data *dataset
}

// Store implements accounts.Store in memory.
type Store struct {
	state *state
	// tx is the working copy of an open transaction, nil otherwise.
	tx *dataset
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: &state{data: newDataset()},
	}
}

// do runs fn against the dataset visible to s. Outside a transaction it
// takes the lock; inside one the lock is already held by RunInTx.
func (s *Store) do(fn func(d *dataset) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state.data)
}

func (s *Store) Accounts() accounts.AccountRepository {
	return accountRepo{s}
}

func (s *Store) Assignments() accounts.AssignmentRepository {
	return assignmentRepo{s}
}

func (s *Store) Tokens() accounts.TokenRepository {
	return tokenRepo{s}
}

// RunInTx serializes with every other writer. Nested calls share the outer
// transaction and its outcome.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx accounts.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before transaction")
	default:
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	working := s.state.data.clone()
	if err := fn(ctx, &Store{state: s.state, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before commit")
	}
	s.state.data = working
	return nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) FindAccountByID(_ context.Context, id uuid.UUID) (*accounts.Account, error) {
	var out *accounts.Account
	err := r.s.do(func(d *dataset) error {
		account, ok := d.accounts[id]
		if !ok {
			return accounts.ErrAccountNotFound
		}
		out = d.withAssignments(account)
		return nil
	})
	return out, err
}

func (r accountRepo) FindAccountByLogin(ctx context.Context, login string) (*accounts.Account, error) {
	return r.findByIndex(func(d *dataset) (uuid.UUID, bool) {
		id, ok := d.logins[login]
		return id, ok
	})
}

func (r accountRepo) FindAccountByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return r.findByIndex(func(d *dataset) (uuid.UUID, bool) {
		id, ok := d.emails[email]
		return id, ok
	})
}

func (r accountRepo) findByIndex(lookup func(d *dataset) (uuid.UUID, bool)) (*accounts.Account, error) {
	var out *accounts.Account
	err := r.s.do(func(d *dataset) error {
		id, ok := lookup(d)
		if !ok {
			return accounts.ErrAccountNotFound
		}
		out = d.withAssignments(d.accounts[id])
		return nil
	})
	return out, err
}

func (r accountRepo) PersistAccount(_ context.Context, account *accounts.Account) (*accounts.Account, error) {
	var out *accounts.Account
	err := r.s.do(func(d *dataset) error {
		if _, ok := d.accounts[account.ID]; ok {
			return accounts.ErrOptimisticConflict
		}
		if _, ok := d.logins[account.Login]; ok {
			return accounts.ErrDuplicateLogin
		}
		if _, ok := d.emails[account.Email]; ok {
			return accounts.ErrDuplicateEmail
		}

		record := account.Clone()
		if record.Version == 0 {
			record.Version = 1
		}
		for _, assignment := range record.AccessLevels {
			key := assignmentKey{accountID: record.ID, level: assignment.Level}
			if _, ok := d.assignments[key]; ok {
				return accounts.ErrOptimisticConflict
			}
			assignment.AccountID = record.ID
			d.assignments[key] = assignment.Clone()
		}
		record.AccessLevels = nil

		d.accounts[record.ID] = record
		d.logins[record.Login] = record.ID
		d.emails[record.Email] = record.ID
		out = d.withAssignments(record)
		return nil
	})
	return out, err
}

func (r accountRepo) UpdateAccount(_ context.Context, account *accounts.Account) (*accounts.Account, error) {
	var out *accounts.Account
	err := r.s.do(func(d *dataset) error {
		current, ok := d.accounts[account.ID]
		if !ok {
			return accounts.ErrAccountNotFound
		}
		if current.Version != account.Version {
			return accounts.ErrOptimisticConflict
		}
		if owner, ok := d.emails[account.Email]; ok && owner != account.ID {
			return accounts.ErrDuplicateEmail
		}

		record := account.Clone()
		record.Login = current.Login
		record.CreatedAt = current.CreatedAt
		record.Version = current.Version + 1
		record.AccessLevels = nil

		if current.Email != record.Email {
			delete(d.emails, current.Email)
			d.emails[record.Email] = record.ID
		}
		d.accounts[record.ID] = record

		out = d.withAssignments(record)
		return nil
	})
	return out, err
}

// withAssignments returns a copy of account carrying its stored assignments.
func (d *dataset) withAssignments(account *accounts.Account) *accounts.Account {
	out := account.Clone()
	out.AccessLevels = d.assignmentsOf(account.ID)
	return out
}

func (d *dataset) assignmentsOf(accountID uuid.UUID) []*accounts.AccessLevelAssignment {
	out := []*accounts.AccessLevelAssignment{}
	for key, assignment := range d.assignments {
		if key.accountID == accountID {
			out = append(out, assignment.Clone())
		}
	}
	sortAssignments(out)
	return out
}

// sortAssignments orders by creation, then level name for stable output.
func sortAssignments(in []*accounts.AccessLevelAssignment) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].Level < in[j].Level
		}
		return in[i].CreatedAt.Before(in[j].CreatedAt)
	})
}

type assignmentRepo struct{ s *Store }

func (r assignmentRepo) FindAssignment(_ context.Context, accountID uuid.UUID, level accounts.AccessLevel) (*accounts.AccessLevelAssignment, error) {
	var out *accounts.AccessLevelAssignment
	err := r.s.do(func(d *dataset) error {
		out = d.assignments[assignmentKey{accountID: accountID, level: level}].Clone()
		return nil
	})
	return out, err
}

func (r assignmentRepo) ListAssignments(_ context.Context, accountID uuid.UUID) ([]*accounts.AccessLevelAssignment, error) {
	var out []*accounts.AccessLevelAssignment
	err := r.s.do(func(d *dataset) error {
		out = d.assignmentsOf(accountID)
		return nil
	})
	return out, err
}

func (r assignmentRepo) PersistAssignment(_ context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	var out *accounts.AccessLevelAssignment
	err := r.s.do(func(d *dataset) error {
		if _, ok := d.accounts[assignment.AccountID]; !ok {
			return accounts.ErrAccountNotFound
		}
		key := assignmentKey{accountID: assignment.AccountID, level: assignment.Level}
		if _, ok := d.assignments[key]; ok {
			return accounts.ErrOptimisticConflict
		}
		record := assignment.Clone()
		if record.Version == 0 {
			record.Version = 1
		}
		d.assignments[key] = record
		out = record.Clone()
		return nil
	})
	return out, err
}

func (r assignmentRepo) UpdateAssignment(_ context.Context, assignment *accounts.AccessLevelAssignment) (*accounts.AccessLevelAssignment, error) {
	var out *accounts.AccessLevelAssignment
	err := r.s.do(func(d *dataset) error {
		key := assignmentKey{accountID: assignment.AccountID, level: assignment.Level}
		current, ok := d.assignments[key]
		if !ok || current.ID != assignment.ID || current.Version != assignment.Version {
			return accounts.ErrOptimisticConflict
		}
		record := assignment.Clone()
		record.CreatedAt = current.CreatedAt
		record.Version = current.Version + 1
		d.assignments[key] = record
		out = record.Clone()
		return nil
	})
	return out, err
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) IssueToken(_ context.Context, req accounts.TokenRequest) (*accounts.VerificationToken, error) {
	token, err := accounts.NewVerificationToken(req)
	if err != nil {
		return nil, err
	}
	err = r.s.do(func(d *dataset) error {
		if _, ok := d.tokens[token.TokenHash]; ok {
			return accounts.ErrOptimisticConflict
		}
		stored := token.Clone()
		stored.Value = ""
		d.tokens[token.TokenHash] = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r tokenRepo) ConsumeToken(_ context.Context, value string, purpose accounts.TokenPurpose, at time.Time) (*accounts.VerificationToken, error) {
	var out *accounts.VerificationToken
	err := r.s.do(func(d *dataset) error {
		stored, ok := d.tokens[accounts.HashTokenValue(value)]
		if !ok || stored.Purpose != purpose {
			return accounts.ErrTokenNotFound
		}
		next := stored.Clone()
		if err := next.Redeem(at); err != nil {
			return err
		}
		d.tokens[next.TokenHash] = next
		out = next.Clone()
		out.Value = value
		return nil
	})
	return out, err
}
