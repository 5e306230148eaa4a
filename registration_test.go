package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSelfThenConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.manager.RegisterSelf(ctx, accounts.AccountCandidate{
		Login:    "alice",
		Email:    "alice@x.com",
		Name:     "Alice",
		Surname:  "Liddell",
		Password: "Secret123!",
	})
	require.NoError(t, err)
	require.NotNil(t, reg.Account)
	require.NotNil(t, reg.Token)

	account := reg.Account
	assert.True(t, account.Active)
	assert.False(t, account.Registered)
	assert.Equal(t, 0, account.FailedLoginAttempts)
	assert.Equal(t, int64(1), account.Version)
	assert.NotEqual(t, "Secret123!", account.PasswordHash)

	require.Len(t, account.AccessLevels, 1)
	assert.Equal(t, accounts.AccessLevelClient, account.AccessLevels[0].Level)
	assert.True(t, account.AccessLevels[0].Active)

	issued := f.notifier.tokensFor(accounts.TokenPurposeRegistration)
	require.Len(t, issued, 1)
	assert.Equal(t, "alice", issued[0].Login)
	assert.Equal(t, reg.Token.Value, issued[0].Token.Value)
	assert.Equal(t, f.clock.Now().Add(accounts.DefaultRegistrationTokenTTL), reg.Token.ExpiresAt)

	confirmed, err := f.manager.ConfirmRegistration(ctx, reg.Token.Value)
	require.NoError(t, err)
	assert.True(t, confirmed.Registered)
	assert.True(t, confirmed.Active)
	assert.Equal(t, int64(2), confirmed.Version)

	_, err = f.manager.ConfirmRegistration(ctx, reg.Token.Value)
	require.ErrorIs(t, err, accounts.ErrTokenAlreadyUsed)

	assert.True(t, f.find(t, "alice").Registered)
	assert.Contains(t, f.sink.types(), accounts.ActivityEventAccountRegistered)
	assert.Contains(t, f.sink.types(), accounts.ActivityEventAccountConfirmed)
}

func TestConfirmRegistrationExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.manager.RegisterSelf(ctx, candidate("dave", "dave@x.com", "Secret123!"))
	require.NoError(t, err)

	f.clock.Advance(accounts.DefaultRegistrationTokenTTL + time.Second)

	_, err = f.manager.ConfirmRegistration(ctx, reg.Token.Value)
	require.ErrorIs(t, err, accounts.ErrTokenExpired)
	assert.False(t, f.find(t, "dave").Registered)
}

func TestConfirmRegistrationUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.ConfirmRegistration(context.Background(), "")
	require.ErrorIs(t, err, accounts.ErrTokenNotFound)

	_, err = f.manager.ConfirmRegistration(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, accounts.ErrTokenNotFound)
}

func TestConfirmRegistrationRejectsOtherPurpose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerConfirmed(t, "erin", "erin@x.com", "Secret123!")

	reset, err := f.manager.RequestPasswordReset(ctx, "erin@x.com")
	require.NoError(t, err)
	require.NotNil(t, reset)

	_, err = f.manager.ConfirmRegistration(ctx, reset.Value)
	require.ErrorIs(t, err, accounts.ErrTokenNotFound)

	// the reset token is still usable for its own purpose
	_, err = f.manager.ResetPasswordViaToken(ctx, reset.Value, "Another123!")
	require.NoError(t, err)
}

func TestRegisterDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.registerConfirmed(t, "frank", "frank@x.com", "Secret123!")

	_, err := f.manager.RegisterSelf(ctx, candidate("frank", "other@x.com", "Secret123!"))
	require.ErrorIs(t, err, accounts.ErrDuplicateLogin)

	_, err = f.manager.RegisterSelf(ctx, candidate("franky", "FRANK@x.com", "Secret123!"))
	require.ErrorIs(t, err, accounts.ErrDuplicateEmail)

	// both taken reports the login first
	_, err = f.manager.RegisterSelf(ctx, candidate("frank", "frank@x.com", "Secret123!"))
	require.ErrorIs(t, err, accounts.ErrDuplicateLogin)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		candidate accounts.AccountCandidate
		weak      bool
	}{
		{
			name:      "short login",
			candidate: candidate("ab", "ab@x.com", "Secret123!"),
		},
		{
			name:      "login with spaces",
			candidate: candidate("a b c", "abc@x.com", "Secret123!"),
		},
		{
			name:      "invalid email",
			candidate: candidate("grace", "not-an-email", "Secret123!"),
		},
		{
			name: "lower case name",
			candidate: accounts.AccountCandidate{
				Login: "heidi", Email: "heidi@x.com", Name: "heidi", Surname: "Klum", Password: "Secret123!",
			},
		},
		{
			name:      "short password",
			candidate: candidate("ivan", "ivan@x.com", "short"),
			weak:      true,
		},
		{
			name:      "password padded with spaces",
			candidate: candidate("judy", "judy@x.com", "   abc   "),
			weak:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.RegisterSelf(context.Background(), tt.candidate)
			require.Error(t, err)
			if tt.weak {
				assert.ErrorIs(t, err, accounts.ErrWeakPassword)
			}
		})
	}

	assert.Zero(t, f.notifier.total())
}

func TestRegisterByAdminFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.manager.RegisterByAdmin(ctx, candidate("mallory", "mallory@x.com", "Secret123!"), accounts.InitialStatus{
		Active:     false,
		Registered: false,
	})
	require.NoError(t, err)
	assert.False(t, reg.Account.Active)
	assert.False(t, reg.Account.Registered)
	require.NotNil(t, reg.Token)
	assert.Equal(t, []accounts.AccessLevel{accounts.AccessLevelClient}, f.manager.AccessLevels().ListActiveRoles(reg.Account))

	confirmed := f.registerConfirmed(t, "oscar", "oscar@x.com", "Secret123!")
	assert.True(t, confirmed.Active)
	assert.True(t, confirmed.Registered)
	assert.Len(t, f.notifier.tokensFor(accounts.TokenPurposeRegistration), 1)
}

func TestRegisterWithHashedIDs(t *testing.T) {
	ctx := context.Background()
	first := newFixture(t, accounts.WithHashedIDs(true))
	second := newFixture(t, accounts.WithHashedIDs(true))

	a, err := first.manager.RegisterSelf(ctx, candidate("peggy", "peggy@x.com", "Secret123!"))
	require.NoError(t, err)
	b, err := second.manager.RegisterSelf(ctx, candidate("peggy", "peggy@x.com", "Secret123!"))
	require.NoError(t, err)

	assert.Equal(t, a.Account.ID, b.Account.ID)
}
