package accounts

import (
	"context"
	"errors"
)

// PasswordResetForced tags the payload of reset tokens issued by an administrator.
const PasswordResetForced = "forced"

// ChangeOwnPassword replaces the password after checking the current one.
// Checks run in order: missing old password, mismatch, weak new password.
func (m *Manager) ChangeOwnPassword(ctx context.Context, login, oldRaw, newRaw string) error {
	if oldRaw == "" {
		return ErrMissingOldPassword
	}

	return m.run(ctx, "change own password", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}

		if !m.policy.Verify(oldRaw, account.PasswordHash) {
			return ErrPasswordMismatch
		}

		if err := m.policy.Validate(newRaw); err != nil {
			return err
		}

		return m.replacePassword(ctx, tx, box, account, newRaw, "self")
	})
}

// ChangePasswordAsAdmin replaces the password without the old password check.
func (m *Manager) ChangePasswordAsAdmin(ctx context.Context, login, newRaw string) error {
	if err := m.policy.Validate(newRaw); err != nil {
		return err
	}

	return m.run(ctx, "change password as admin", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}
		return m.replacePassword(ctx, tx, box, account, newRaw, "admin")
	})
}

// RequestPasswordReset issues a password reset token for the account owning
// email. Unknown addresses return nil, nil.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (*VerificationToken, error) {
	email = normalizeEmail(email)

	var token *VerificationToken
	err := m.run(ctx, "request password reset", func(ctx context.Context, tx Store, box *outbox) error {
		token = nil

		account, err := tx.Accounts().FindAccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil
			}
			return wrapInternal(err, "failed to load account")
		}

		token, err = m.issueToken(ctx, tx, box, account, TokenPurposePasswordReset, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ForcePasswordReset issues a password reset token on behalf of an administrator.
func (m *Manager) ForcePasswordReset(ctx context.Context, login string) (*VerificationToken, error) {
	var token *VerificationToken
	err := m.run(ctx, "force password reset", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}
		token, err = m.issueToken(ctx, tx, box, account, TokenPurposePasswordReset, PasswordResetForced)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ResetPasswordViaToken consumes a password reset token and sets newRaw.
// The token is consumed before the policy check; a weak password fails the
// transaction so transactional token stores keep the token usable.
func (m *Manager) ResetPasswordViaToken(ctx context.Context, value, newRaw string) (*Account, error) {
	var out *Account
	err := m.run(ctx, "reset password", func(ctx context.Context, tx Store, box *outbox) error {
		token, err := m.consumeToken(ctx, tx, value, TokenPurposePasswordReset)
		if err != nil {
			return err
		}

		if err := m.policy.Validate(newRaw); err != nil {
			return err
		}

		account, err := m.findByID(ctx, tx, token.AccountID)
		if err != nil {
			return err
		}

		hash, err := m.policy.Hash(newRaw)
		if err != nil {
			return err
		}
		account.PasswordHash = hash

		if out, err = m.save(ctx, tx, account); err != nil {
			return err
		}

		box.record(m.event(ActivityEventPasswordReset, out, map[string]any{
			"token_id": token.ID.String(),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) replacePassword(ctx context.Context, tx Store, box *outbox, account *Account, newRaw, changedBy string) error {
	hash, err := m.policy.Hash(newRaw)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	updated, err := m.save(ctx, tx, account)
	if err != nil {
		return err
	}

	box.record(m.event(ActivityEventPasswordChanged, updated, map[string]any{
		"changed_by": changedBy,
	}))
	return nil
}
