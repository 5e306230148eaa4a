package accounts

import "context"

// SetAccountStatus activates or blocks an account. Any change resets the
// failed attempt counter and notifies the owner; setting the current value
// is a no-op.
func (m *Manager) SetAccountStatus(ctx context.Context, login string, active bool) (*Account, error) {
	var out *Account
	err := m.run(ctx, "set account status", func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}

		if account.Active == active {
			out = account
			return nil
		}

		out, err = m.applyStatus(ctx, tx, box, account, active)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmAccountUnblock consumes an account unblock token and reactivates
// the account it was issued for.
func (m *Manager) ConfirmAccountUnblock(ctx context.Context, value string) (*Account, error) {
	var out *Account
	err := m.run(ctx, "confirm account unblock", func(ctx context.Context, tx Store, box *outbox) error {
		token, err := m.consumeToken(ctx, tx, value, TokenPurposeAccountUnblock)
		if err != nil {
			return err
		}

		account, err := m.findByID(ctx, tx, token.AccountID)
		if err != nil {
			return err
		}

		if account.Active {
			out = account
			return nil
		}

		out, err = m.applyStatus(ctx, tx, box, account, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) applyStatus(ctx context.Context, tx Store, box *outbox, account *Account, active bool) (*Account, error) {
	account.Active = active
	account.FailedLoginAttempts = 0

	updated, err := m.save(ctx, tx, account)
	if err != nil {
		return nil, err
	}

	snapshot := updated.Clone()
	box.notify(func(ctx context.Context, n Notifier) {
		n.NotifyAccountStatusChanged(ctx, snapshot, active)
	})
	box.record(m.event(ActivityEventAccountStatusChanged, updated, map[string]any{
		"active": active,
	}))
	return updated, nil
}

// GrantAccessLevel activates level for login and notifies the owner.
func (m *Manager) GrantAccessLevel(ctx context.Context, login string, level AccessLevel) (*Account, error) {
	return m.changeAccessLevel(ctx, "grant access level", login, level, true)
}

// RevokeAccessLevel deactivates level for login and notifies the owner.
func (m *Manager) RevokeAccessLevel(ctx context.Context, login string, level AccessLevel) (*Account, error) {
	return m.changeAccessLevel(ctx, "revoke access level", login, level, false)
}

func (m *Manager) changeAccessLevel(ctx context.Context, op, login string, level AccessLevel, grant bool) (*Account, error) {
	level, err := m.registry.Lookup(level)
	if err != nil {
		return nil, err
	}

	var out *Account
	err = m.run(ctx, op, func(ctx context.Context, tx Store, box *outbox) error {
		account, err := m.findByLogin(ctx, tx, login)
		if err != nil {
			return err
		}

		if grant {
			_, err = m.registry.Grant(ctx, tx.Assignments(), account, level)
		} else {
			_, err = m.registry.Revoke(ctx, tx.Assignments(), account, level)
		}
		if err != nil {
			return err
		}

		snapshot := account.Clone()
		box.notify(func(ctx context.Context, n Notifier) {
			n.NotifyAccessLevelChanged(ctx, snapshot, level, grant)
		})
		out = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
