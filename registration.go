package accounts

import (
	"context"
	"errors"
)

// RegisterSelf creates an active, unconfirmed account holding CLIENT and
// issues a registration confirmation token.
func (m *Manager) RegisterSelf(ctx context.Context, candidate AccountCandidate) (*Registration, error) {
	return m.register(ctx, candidate, InitialStatus{Active: true, Registered: false})
}

// RegisterByAdmin creates an account with the given flags. A confirmation
// token is issued only when the account starts unregistered.
func (m *Manager) RegisterByAdmin(ctx context.Context, candidate AccountCandidate, status InitialStatus) (*Registration, error) {
	return m.register(ctx, candidate, status)
}

func (m *Manager) register(ctx context.Context, candidate AccountCandidate, status InitialStatus) (*Registration, error) {
	candidate = candidate.Normalized()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := m.policy.Validate(candidate.Password); err != nil {
		return nil, err
	}

	hash, err := m.policy.Hash(candidate.Password)
	if err != nil {
		return nil, err
	}

	result := &Registration{}
	err = m.run(ctx, "register account", func(ctx context.Context, tx Store, box *outbox) error {
		if err := m.ensureUnique(ctx, tx, candidate.Login, candidate.Email); err != nil {
			return err
		}

		now := m.now()
		account, err := tx.Accounts().PersistAccount(ctx, &Account{
			ID:           m.newAccountID(candidate.Login),
			Login:        candidate.Login,
			Email:        candidate.Email,
			Name:         candidate.Name,
			Surname:      candidate.Surname,
			PasswordHash: hash,
			Active:       status.Active,
			Registered:   status.Registered,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return wrapInternal(err, "failed to persist account")
		}

		if _, err := m.registry.Grant(ctx, tx.Assignments(), account, AccessLevelClient); err != nil {
			return err
		}

		if !status.Registered {
			token, err := m.issueToken(ctx, tx, box, account, TokenPurposeRegistration, "")
			if err != nil {
				return err
			}
			result.Token = token
		}

		box.record(m.event(ActivityEventAccountRegistered, account, map[string]any{
			"active":     account.Active,
			"registered": account.Registered,
		}))
		result.Account = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureUnique reports taken logins before taken emails. Store constraints
// remain the authority for concurrent registrations.
func (m *Manager) ensureUnique(ctx context.Context, tx Store, login, email string) error {
	if _, err := tx.Accounts().FindAccountByLogin(ctx, login); err == nil {
		return ErrDuplicateLogin
	} else if !errors.Is(err, ErrAccountNotFound) {
		return wrapInternal(err, "failed to check login uniqueness")
	}
	return m.ensureEmailFree(ctx, tx, email, nil)
}

// ensureEmailFree allows the address when it already belongs to owner.
func (m *Manager) ensureEmailFree(ctx context.Context, tx Store, email string, owner *Account) error {
	existing, err := tx.Accounts().FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return wrapInternal(err, "failed to check email uniqueness")
	}
	if owner != nil && existing.ID == owner.ID {
		return nil
	}
	return ErrDuplicateEmail
}

// ConfirmRegistration consumes a registration token and marks the account registered.
func (m *Manager) ConfirmRegistration(ctx context.Context, value string) (*Account, error) {
	var confirmed *Account
	err := m.run(ctx, "confirm registration", func(ctx context.Context, tx Store, box *outbox) error {
		token, err := m.consumeToken(ctx, tx, value, TokenPurposeRegistration)
		if err != nil {
			return err
		}

		account, err := m.findByID(ctx, tx, token.AccountID)
		if err != nil {
			return err
		}

		if !account.Registered {
			account.Registered = true
			if account, err = m.save(ctx, tx, account); err != nil {
				return err
			}
		}

		box.record(m.event(ActivityEventAccountConfirmed, account, nil))
		confirmed = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}
