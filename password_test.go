package accounts_test

import (
	"strings"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialPolicyValidate(t *testing.T) {
	lengthOnly := accounts.NewCredentialPolicy(accounts.WithHashCost(bcrypt.MinCost))
	complex := accounts.NewCredentialPolicy(
		accounts.WithHashCost(bcrypt.MinCost),
		accounts.WithPasswordRules(accounts.ComplexityRules()...),
	)

	tests := []struct {
		name     string
		password string
		policy   *accounts.CredentialPolicy
		wantErr  bool
	}{
		{name: "eight characters", password: "abcdefgh", policy: lengthOnly},
		{name: "seven characters", password: "abcdefg", policy: lengthOnly, wantErr: true},
		{name: "padding does not count", password: "   abcdefg   ", policy: lengthOnly, wantErr: true},
		{name: "multibyte runes count once", password: "ążśźćńół", policy: lengthOnly},
		{name: "over bcrypt limit", password: strings.Repeat("a", accounts.MaxPasswordBytes+1), policy: lengthOnly, wantErr: true},
		{name: "complex password", password: "Valid123!", policy: complex},
		{name: "missing symbol", password: "Valid1234", policy: complex, wantErr: true},
		{name: "missing digit", password: "Valid!!!!", policy: complex, wantErr: true},
		{name: "missing upper case", password: "valid123!", policy: complex, wantErr: true},
		{name: "missing lower case", password: "VALID123!", policy: complex, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, accounts.ErrWeakPassword)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCredentialPolicyHashAndVerify(t *testing.T) {
	policy := accounts.NewCredentialPolicy(accounts.WithHashCost(bcrypt.MinCost))

	hash, err := policy.Hash("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.True(t, policy.Verify("Secret123!", hash))
	assert.False(t, policy.Verify("secret123!", hash))
	assert.False(t, policy.Verify("Secret123!", ""))

	other, err := policy.Hash("Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "bcrypt salts every hash")
}

func TestCredentialPolicyCost(t *testing.T) {
	assert.Equal(t, accounts.DefaultHashCost(), accounts.NewCredentialPolicy().Cost())
	assert.Equal(t, bcrypt.MinCost, accounts.NewCredentialPolicy(accounts.WithHashCost(1)).Cost())
	assert.Equal(t, bcrypt.MaxCost, accounts.NewCredentialPolicy(accounts.WithHashCost(99)).Cost())

	var nilPolicy *accounts.CredentialPolicy
	assert.ErrorIs(t, nilPolicy.Validate("short"), accounts.ErrWeakPassword)
	assert.Equal(t, accounts.DefaultHashCost(), nilPolicy.Cost())
}
