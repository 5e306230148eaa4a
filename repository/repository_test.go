package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var baseTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.Open(repository.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	group, err := repository.Migrate(context.Background(), db)
	require.NoError(t, err)
	require.False(t, group.IsZero())
	return db
}

func newAccount(login, email string) *accounts.Account {
	return &accounts.Account{
		ID:           uuid.New(),
		Login:        login,
		Email:        email,
		Name:         "Test",
		Surname:      "User",
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := repository.Open("oracle", "")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	group, err := repository.Migrate(ctx, db)
	require.NoError(t, err)
	assert.True(t, group.IsZero(), "nothing left to apply")

	var levels []string
	err = db.NewSelect().Table("access_levels").Column("name").Order("name ASC").Scan(ctx, &levels)
	require.NoError(t, err)
	assert.ElementsMatch(t, accounts.DefaultAccessLevels(), levels)

	rolled, err := repository.Rollback(ctx, db)
	require.NoError(t, err)
	assert.False(t, rolled.IsZero())
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupDB(t))

	account := newAccount("alice", "alice@x.com")
	account.AccessLevels = []*accounts.AccessLevelAssignment{
		{ID: uuid.New(), Level: accounts.AccessLevelClient, Active: true, Version: 1, CreatedAt: baseTime, UpdatedAt: baseTime},
	}

	created, err := store.Accounts().PersistAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	found, err := store.Accounts().FindAccountByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, "alice@x.com", found.Email)
	assert.True(t, found.Active)
	assert.False(t, found.Registered)
	require.Len(t, found.AccessLevels, 1)
	assert.True(t, found.HasActiveAccessLevel(accounts.AccessLevelClient))

	byEmail, err := store.Accounts().FindAccountByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	byID, err := store.Accounts().FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Login)

	_, err = store.Accounts().FindAccountByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	_, err = store.Accounts().PersistAccount(ctx, newAccount("alice", "other@x.com"))
	assert.ErrorIs(t, err, accounts.ErrDuplicateLogin)

	_, err = store.Accounts().PersistAccount(ctx, newAccount("other", "alice@x.com"))
	assert.ErrorIs(t, err, accounts.ErrDuplicateEmail)
}

func TestUpdateAccountOptimisticLock(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupDB(t))

	created, err := store.Accounts().PersistAccount(ctx, newAccount("bob", "bob@x.com"))
	require.NoError(t, err)

	first := created.Clone()
	second := created.Clone()

	first.Registered = true
	first.FailedLoginAttempts = 2
	updated, err := store.Accounts().UpdateAccount(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	second.Name = "Robert"
	_, err = store.Accounts().UpdateAccount(ctx, second)
	require.ErrorIs(t, err, accounts.ErrOptimisticConflict)

	stored, err := store.Accounts().FindAccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Registered)
	assert.Equal(t, 2, stored.FailedLoginAttempts)
	assert.Equal(t, "Test", stored.Name)
	assert.Equal(t, int64(2), stored.Version)

	ghost := newAccount("ghost", "ghost@x.com")
	ghost.Version = 1
	_, err = store.Accounts().UpdateAccount(ctx, ghost)
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestUpdateAccountDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupDB(t))

	carol, err := store.Accounts().PersistAccount(ctx, newAccount("carol", "carol@x.com"))
	require.NoError(t, err)
	_, err = store.Accounts().PersistAccount(ctx, newAccount("dave", "dave@x.com"))
	require.NoError(t, err)

	carol.Email = "dave@x.com"
	_, err = store.Accounts().UpdateAccount(ctx, carol)
	require.ErrorIs(t, err, accounts.ErrDuplicateEmail)
}

func TestAssignmentRepository(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupDB(t))

	account, err := store.Accounts().PersistAccount(ctx, newAccount("erin", "erin@x.com"))
	require.NoError(t, err)

	missing, err := store.Assignments().FindAssignment(ctx, account.ID, accounts.AccessLevelModerator)
	require.NoError(t, err)
	assert.Nil(t, missing)

	row := &accounts.AccessLevelAssignment{
		ID:        uuid.New(),
		AccountID: account.ID,
		Level:     accounts.AccessLevelModerator,
		Active:    true,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	created, err := store.Assignments().PersistAssignment(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	_, err = store.Assignments().PersistAssignment(ctx, &accounts.AccessLevelAssignment{
		ID:        uuid.New(),
		AccountID: account.ID,
		Level:     accounts.AccessLevelModerator,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})
	require.ErrorIs(t, err, accounts.ErrOptimisticConflict)

	toggled := created.Clone()
	toggled.Active = false
	toggled.UpdatedAt = baseTime.Add(time.Hour)
	updated, err := store.Assignments().UpdateAssignment(ctx, toggled)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = store.Assignments().UpdateAssignment(ctx, toggled)
	require.ErrorIs(t, err, accounts.ErrOptimisticConflict)

	rows, err := store.Assignments().ListAssignments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, created.ID, rows[0].ID)
	assert.False(t, rows[0].Active)
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	store := repository.NewStore(db)

	account, err := store.Accounts().PersistAccount(ctx, newAccount("frank", "frank@x.com"))
	require.NoError(t, err)

	token, err := store.Tokens().IssueToken(ctx, accounts.TokenRequest{
		AccountID: account.ID,
		Purpose:   accounts.TokenPurposeEmailChange,
		TTL:       time.Hour,
		Payload:   "frank@y.com",
		IssuedAt:  baseTime,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)

	var hashes []string
	err = db.NewSelect().Table("verification_tokens").Column("token_hash").Scan(ctx, &hashes)
	require.NoError(t, err)
	assert.Equal(t, []string{accounts.HashTokenValue(token.Value)}, hashes)

	_, err = store.Tokens().ConsumeToken(ctx, token.Value, accounts.TokenPurposePasswordReset, baseTime)
	require.ErrorIs(t, err, accounts.ErrTokenNotFound)

	_, err = store.Tokens().ConsumeToken(ctx, token.Value, accounts.TokenPurposeEmailChange, baseTime.Add(2*time.Hour))
	require.ErrorIs(t, err, accounts.ErrTokenExpired)

	consumed, err := store.Tokens().ConsumeToken(ctx, token.Value, accounts.TokenPurposeEmailChange, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "frank@y.com", consumed.Payload)
	assert.Equal(t, account.ID, consumed.AccountID)
	require.NotNil(t, consumed.ConsumedAt)

	_, err = store.Tokens().ConsumeToken(ctx, token.Value, accounts.TokenPurposeEmailChange, baseTime.Add(2*time.Minute))
	require.ErrorIs(t, err, accounts.ErrTokenAlreadyUsed)
}

func TestStoreRunInTx(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(setupDB(t))
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(ctx context.Context, tx accounts.Store) error {
		if _, err := tx.Accounts().PersistAccount(ctx, newAccount("grace", "grace@x.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Accounts().FindAccountByLogin(ctx, "grace")
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)

	err = store.RunInTx(ctx, func(ctx context.Context, tx accounts.Store) error {
		_, err := tx.Accounts().PersistAccount(ctx, newAccount("grace", "grace@x.com"))
		return err
	})
	require.NoError(t, err)

	_, err = store.Accounts().FindAccountByLogin(ctx, "grace")
	require.NoError(t, err)
}
