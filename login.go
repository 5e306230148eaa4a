package accounts

import (
	"context"
	"errors"
)

// RegisterFailedLogin counts a failed authentication. Inactive and
// unregistered accounts are left untouched. Reaching LockoutThreshold blocks
// the account, resets the counter and notifies the owner once.
func (m *Manager) RegisterFailedLogin(ctx context.Context, login string) (*Account, error) {
	var out *Account
	err := m.run(ctx, "register failed login", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}
		out, err = m.recordFailure(ctx, tx, box, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterSuccessfulLogin resets the failed attempt counter of tracked accounts.
func (m *Manager) RegisterSuccessfulLogin(ctx context.Context, login string) (*Account, error) {
	var out *Account
	err := m.run(ctx, "register successful login", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}
		out, err = m.recordSuccess(ctx, tx, box, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCredentials authenticates login with password. A wrong password is
// recorded as a failed login and committed before ErrInvalidCredentials is
// returned; unknown logins report the same error.
func (m *Manager) VerifyCredentials(ctx context.Context, login, password string) (*Account, error) {
	var (
		verified *Account
		denied   error
	)

	err := m.run(ctx, "verify credentials", func(ctx context.Context, tx Store, box *outbox) error {
		verified, denied = nil, nil

		account, err := tx.Accounts().FindAccountByLogin(ctx, login)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				box.record(m.event(ActivityEventLoginFailure, nil, map[string]any{
					"login":  login,
					"reason": "unknown login",
				}))
				denied = ErrInvalidCredentials
				return nil
			}
			return wrapInternal(err, "failed to load account")
		}

		if !m.policy.Verify(password, account.PasswordHash) {
			if _, err := m.recordFailure(ctx, tx, box, account); err != nil {
				return err
			}
			denied = ErrInvalidCredentials
			return nil
		}

		switch {
		case !account.Active:
			denied = ErrAccountInactive
			return nil
		case !account.Registered:
			denied = ErrAccountUnregistered
			return nil
		}

		verified, err = m.recordSuccess(ctx, tx, box, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	if denied != nil {
		return nil, denied
	}
	return verified, nil
}

func (m *Manager) recordFailure(ctx context.Context, tx Store, box *outbox, account *Account) (*Account, error) {
	if !account.TracksLogins() {
		return account, nil
	}

	now := m.now()
	account.FailedLoginAttempts++
	account.LastFailedLoginAt = &now

	locked := account.FailedLoginAttempts >= LockoutThreshold
	if locked {
		account.Active = false
		account.FailedLoginAttempts = 0
	}

	updated, err := m.save(ctx, tx, account)
	if err != nil {
		return nil, err
	}

	box.record(m.event(ActivityEventLoginFailure, updated, map[string]any{
		"failed_login_attempts": updated.FailedLoginAttempts,
		"locked_out":            locked,
	}))

	if !locked {
		return updated, nil
	}

	snapshot := updated.Clone()
	box.notify(func(ctx context.Context, n Notifier) {
		n.NotifyAccountLockedOut(ctx, snapshot)
	})

	if m.unblockOnLockout {
		if _, err := m.issueToken(ctx, tx, box, updated, TokenPurposeAccountUnblock, ""); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

func (m *Manager) recordSuccess(ctx context.Context, tx Store, box *outbox, account *Account) (*Account, error) {
	if !account.TracksLogins() {
		return account, nil
	}

	now := m.now()
	account.FailedLoginAttempts = 0
	account.LastSuccessfulLoginAt = &now

	updated, err := m.save(ctx, tx, account)
	if err != nil {
		return nil, err
	}

	box.record(m.event(ActivityEventLoginSuccess, updated, nil))
	return updated, nil
}
