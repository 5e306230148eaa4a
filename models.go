package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessLevel is the name of a role drawn from the catalog
type AccessLevel = string

const (
	// AccessLevelClient is granted to every self registered account
	AccessLevelClient AccessLevel = "CLIENT"
	// AccessLevelPhotographer can publish a photographer profile
	AccessLevelPhotographer AccessLevel = "PHOTOGRAPHER"
	// AccessLevelModerator can change account status
	AccessLevelModerator AccessLevel = "MODERATOR"
	// AccessLevelAdministrator can manage accounts and access levels
	AccessLevelAdministrator AccessLevel = "ADMINISTRATOR"
)

// DefaultAccessLevels returns the catalog in display order.
func DefaultAccessLevels() []AccessLevel {
	return []AccessLevel{
		AccessLevelClient,
		AccessLevelPhotographer,
		AccessLevelModerator,
		AccessLevelAdministrator,
	}
}

// TokenPurpose tags what a verification token proves
type TokenPurpose = string

const (
	TokenPurposeRegistration   TokenPurpose = "registration_confirmation"
	TokenPurposePasswordReset  TokenPurpose = "password_reset"
	TokenPurposeEmailChange    TokenPurpose = "email_change"
	TokenPurposeAccountUnblock TokenPurpose = "account_unblock"
)

// Account is the identity root
type Account struct {
	bun.BaseModel         `bun:"table:accounts,alias:acc"`
	ID                    uuid.UUID                `bun:"id,pk" json:"id"`
	Login                 string                   `bun:"login,notnull,unique" json:"login"`
	Email                 string                   `bun:"email,notnull,unique" json:"email"`
	Name                  string                   `bun:"name,notnull" json:"name"`
	Surname               string                   `bun:"surname,notnull" json:"surname"`
	PasswordHash          string                   `bun:"password_hash,notnull" json:"-"`
	Active                bool                     `bun:"active,notnull" json:"active"`
	Registered            bool                     `bun:"registered,notnull" json:"registered"`
	FailedLoginAttempts   int                      `bun:"failed_login_attempts,notnull" json:"failed_login_attempts"`
	LastFailedLoginAt     *time.Time               `bun:"last_failed_login_at" json:"last_failed_login_at,omitempty"`
	LastSuccessfulLoginAt *time.Time               `bun:"last_successful_login_at" json:"last_successful_login_at,omitempty"`
	Version               int64                    `bun:"version,notnull" json:"version"`
	AccessLevels          []*AccessLevelAssignment `bun:"rel:has-many,join:id=account_id" json:"access_levels,omitempty"`
	CreatedAt             time.Time                `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt             time.Time                `bun:"updated_at,notnull" json:"updated_at"`
}

// TracksLogins reports whether login attempts count against the account.
// Inactive accounts and accounts that never confirmed their email are left
// untouched by the failed/successful login bookkeeping.
func (a *Account) TracksLogins() bool {
	return a != nil && a.Active && a.Registered
}

// Assignment returns the assignment row for level, nil if never granted.
func (a *Account) Assignment(level AccessLevel) *AccessLevelAssignment {
	if a == nil {
		return nil
	}
	for _, assignment := range a.AccessLevels {
		if assignment != nil && assignment.Level == level {
			return assignment
		}
	}
	return nil
}

// HasActiveAccessLevel checks the owned collection.
func (a *Account) HasActiveAccessLevel(level AccessLevel) bool {
	assignment := a.Assignment(level)
	return assignment != nil && assignment.Active
}

// SetAssignment replaces or appends the row for its level.
func (a *Account) SetAssignment(assignment *AccessLevelAssignment) {
	if a == nil || assignment == nil {
		return
	}
	for i, current := range a.AccessLevels {
		if current != nil && current.Level == assignment.Level {
			a.AccessLevels[i] = assignment
			return
		}
	}
	a.AccessLevels = append(a.AccessLevels, assignment)
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.LastFailedLoginAt = cloneTime(a.LastFailedLoginAt)
	c.LastSuccessfulLoginAt = cloneTime(a.LastSuccessfulLoginAt)
	if a.AccessLevels != nil {
		c.AccessLevels = make([]*AccessLevelAssignment, 0, len(a.AccessLevels))
		for _, assignment := range a.AccessLevels {
			c.AccessLevels = append(c.AccessLevels, assignment.Clone())
		}
	}
	return &c
}

// AccessLevelValue is a catalog entry. Names are unique.
type AccessLevelValue struct {
	bun.BaseModel `bun:"table:access_levels,alias:alv"`
	Name          AccessLevel `bun:"name,pk" json:"name"`
}

// AccessLevelAssignment joins an account with a catalog entry. There is at
// most one row per (account, level) pair, toggled through Active.
type AccessLevelAssignment struct {
	bun.BaseModel `bun:"table:access_level_assignments,alias:ala"`
	ID            uuid.UUID   `bun:"id,pk" json:"id"`
	AccountID     uuid.UUID   `bun:"account_id,notnull" json:"account_id"`
	Level         AccessLevel `bun:"access_level,notnull" json:"access_level"`
	Active        bool        `bun:"active,notnull" json:"active"`
	Version       int64       `bun:"version,notnull" json:"version"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *AccessLevelAssignment) Clone() *AccessLevelAssignment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// VerificationToken is a single use, purpose tagged and expiring credential.
// Only the SHA-256 hash of the value is stored; Value is populated when the
// token is issued so it can be delivered to the account owner.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vtk"`
	ID            uuid.UUID    `bun:"id,pk" json:"id"`
	AccountID     uuid.UUID    `bun:"account_id,notnull" json:"account_id"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose"`
	Value         string       `bun:"-" json:"value,omitempty"`
	TokenHash     string       `bun:"token_hash,notnull,unique" json:"-"`
	Payload       string       `bun:"payload,notnull" json:"payload,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt    *time.Time   `bun:"consumed_at" json:"consumed_at,omitempty"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// IsExpired evaluates expiry against the given wall clock reading.
func (t *VerificationToken) IsExpired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

func (t *VerificationToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// Redeem marks the token consumed at the given time. Expiry is checked
// before single use, so an expired token reports ErrTokenExpired even if it
// was never consumed.
func (t *VerificationToken) Redeem(at time.Time) error {
	if t.IsExpired(at) {
		return ErrTokenExpired
	}
	if t.IsConsumed() {
		return ErrTokenAlreadyUsed
	}
	consumed := at
	t.ConsumedAt = &consumed
	return nil
}

func (t *VerificationToken) Clone() *VerificationToken {
	if t == nil {
		return nil
	}
	c := *t
	c.ConsumedAt = cloneTime(t.ConsumedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
