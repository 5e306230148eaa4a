// Package authz decides whether a caller may invoke an account operation.
// The accounts core is unaware of callers; transports run these checks
// before calling into accounts.Manager.
package authz

import (
	"context"
	"slices"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

const TextCodeForbidden = "FORBIDDEN"

// ErrForbidden is returned when the caller may not run the operation.
var ErrForbidden = goerrors.New("operation not permitted", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// Operation names an accounts.Manager entry point.
type Operation string

const (
	OpRegisterSelf          Operation = "register_self"
	OpRegisterByAdmin       Operation = "register_by_admin"
	OpConfirmRegistration   Operation = "confirm_registration"
	OpVerifyCredentials     Operation = "verify_credentials"
	OpChangeOwnPassword     Operation = "change_own_password"
	OpChangePasswordAsAdmin Operation = "change_password_as_admin"
	OpRequestPasswordReset  Operation = "request_password_reset"
	OpForcePasswordReset    Operation = "force_password_reset"
	OpResetPassword         Operation = "reset_password"
	OpSetAccountStatus      Operation = "set_account_status"
	OpEditProfile           Operation = "edit_profile"
	OpRequestEmailChange    Operation = "request_email_change"
	OpConfirmEmailChange    Operation = "confirm_email_change"
	OpConfirmAccountUnblock Operation = "confirm_account_unblock"
	OpGrantAccessLevel      Operation = "grant_access_level"
	OpRevokeAccessLevel     Operation = "revoke_access_level"
	OpFindAccount           Operation = "find_account"
)

// Caller is the resolved principal. Anonymous callers have an empty Login.
type Caller struct {
	Login  string
	Levels []accounts.AccessLevel
}

// Anonymous returns a caller with no identity.
func Anonymous() Caller {
	return Caller{}
}

// CallerFromAccount builds a caller from the active levels of account.
func CallerFromAccount(registry *accounts.AccessLevelRegistry, account *accounts.Account) Caller {
	if account == nil || !account.Active {
		return Anonymous()
	}
	return Caller{
		Login:  account.Login,
		Levels: registry.ListActiveRoles(account),
	}
}

func (c Caller) IsAnonymous() bool {
	return c.Login == ""
}

func (c Caller) Has(level accounts.AccessLevel) bool {
	return slices.Contains(c.Levels, level)
}

// Target is what the operation acts on.
type Target struct {
	Login string
	Level accounts.AccessLevel
}

// Rule describes who may run an operation.
type Rule struct {
	// Public operations need no identity.
	Public bool
	// Levels lists the access levels allowed to run the operation. An empty
	// list with Public false admits any authenticated caller.
	Levels []accounts.AccessLevel
	// OwnOnly restricts the target to the caller's own login.
	OwnOnly bool
	// ProtectedLevels may not be the Target.Level.
	ProtectedLevels []accounts.AccessLevel
}

// Policy maps operations to rules. Operations without a rule are denied.
type Policy map[Operation]Rule

// DefaultPolicy grants status changes to moderators and administrators and
// every other administrative operation to administrators only. The
// ADMINISTRATOR level itself cannot be granted or revoked.
func DefaultPolicy() Policy {
	admins := []accounts.AccessLevel{accounts.AccessLevelAdministrator}
	protected := []accounts.AccessLevel{accounts.AccessLevelAdministrator}
	return Policy{
		OpRegisterSelf:          {Public: true},
		OpConfirmRegistration:   {Public: true},
		OpVerifyCredentials:     {Public: true},
		OpRequestPasswordReset:  {Public: true},
		OpResetPassword:         {Public: true},
		OpConfirmEmailChange:    {Public: true},
		OpConfirmAccountUnblock: {Public: true},
		OpChangeOwnPassword:     {OwnOnly: true},
		OpEditProfile:           {OwnOnly: true},
		OpRequestEmailChange:    {OwnOnly: true},
		OpFindAccount:           {OwnOnly: true},
		OpSetAccountStatus: {Levels: []accounts.AccessLevel{
			accounts.AccessLevelAdministrator,
			accounts.AccessLevelModerator,
		}},
		OpRegisterByAdmin:       {Levels: admins},
		OpChangePasswordAsAdmin: {Levels: admins},
		OpForcePasswordReset:    {Levels: admins},
		OpGrantAccessLevel:      {Levels: admins, ProtectedLevels: protected},
		OpRevokeAccessLevel:     {Levels: admins, ProtectedLevels: protected},
	}
}

// Authorizer evaluates a Policy.
type Authorizer struct {
	policy Policy
}

// New returns an authorizer for policy, DefaultPolicy when nil.
func New(policy Policy) *Authorizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Authorizer{policy: policy}
}

// Authorize returns nil when caller may run op against target.
func (a *Authorizer) Authorize(_ context.Context, caller Caller, op Operation, target Target) error {
	rule, ok := a.policy[op]
	if !ok {
		return ErrForbidden
	}

	if rule.Public {
		return nil
	}

	if caller.IsAnonymous() || len(caller.Levels) == 0 {
		return ErrForbidden
	}

	if rule.OwnOnly && caller.Login != target.Login {
		return ErrForbidden
	}

	if len(rule.Levels) > 0 && !slices.ContainsFunc(rule.Levels, caller.Has) {
		return ErrForbidden
	}

	if target.Level != "" && slices.Contains(rule.ProtectedLevels, target.Level) {
		return ErrForbidden
	}

	return nil
}

// Allowed is Authorize as a boolean.
func (a *Authorizer) Allowed(ctx context.Context, caller Caller, op Operation, target Target) bool {
	return a.Authorize(ctx, caller, op, target) == nil
}
