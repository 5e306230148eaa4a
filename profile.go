package accounts

import (
	"context"
	"strings"
)

// EditProfile applies the set fields of changes. A new email must not belong
// to another account.
func (m *Manager) EditProfile(ctx context.Context, login string, changes ProfileChanges) (*Account, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	var out *Account
	err := m.run(ctx, "edit profile", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}

		changed := []string{}
		if changes.Email != nil {
			email := normalizeEmail(*changes.Email)
			if email != account.Email {
				if err := m.ensureEmailFree(ctx, tx, email, account); err != nil {
					return err
				}
				account.Email = email
				changed = append(changed, "email")
			}
		}
		if changes.Name != nil {
			if name := strings.TrimSpace(*changes.Name); name != account.Name {
				account.Name = name
				changed = append(changed, "name")
			}
		}
		if changes.Surname != nil {
			if surname := strings.TrimSpace(*changes.Surname); surname != account.Surname {
				account.Surname = surname
				changed = append(changed, "surname")
			}
		}

		if len(changed) == 0 {
			out = account
			return nil
		}

		if out, err = m.save(ctx, tx, account); err != nil {
			return err
		}
		box.record(m.event(ActivityEventProfileUpdated, out, map[string]any{
			"fields": changed,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestEmailChange issues an email change token carrying newEmail. The
// address is only applied by ConfirmEmailChange.
func (m *Manager) RequestEmailChange(ctx context.Context, login, newEmail string) (*VerificationToken, error) {
	newEmail = normalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return nil, err
	}

	var token *VerificationToken
	err := m.run(ctx, "request email change", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}

		if err := m.ensureEmailFree(ctx, tx, newEmail, nil); err != nil {
			return err
		}

		token, err = m.issueToken(ctx, tx, box, account, TokenPurposeEmailChange, newEmail)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ConfirmEmailChange consumes an email change token and applies the pending
// address, checking uniqueness again.
func (m *Manager) ConfirmEmailChange(ctx context.Context, value string) (*Account, error) {
	var out *Account
	err := m.run(ctx, "confirm email change", func(ctx context.Context, tx Store, box *outbox) error {
		token, err := m.consumeToken(ctx, tx, value, TokenPurposeEmailChange)
		if err != nil {
			return err
		}

		account, err := m.findByID(ctx, tx, token.AccountID)
		if err != nil {
			return err
		}

		email := normalizeEmail(token.Payload)
		if err := validateEmail(email); err != nil {
			return err
		}
		if err := m.ensureEmailFree(ctx, tx, email, account); err != nil {
			return err
		}

		previous := account.Email
		account.Email = email
		if out, err = m.save(ctx, tx, account); err != nil {
			return err
		}

		box.record(m.event(ActivityEventEmailChanged, out, map[string]any{
			"previous_email": previous,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
