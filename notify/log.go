package notify

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
)

// LogNotifier writes every notification to a logger. Token values are only
// included when explicitly enabled, for local development.
type LogNotifier struct {
	logger        accounts.Logger
	includeTokens bool
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger accounts.Logger, includeTokens bool) *LogNotifier {
	if logger == nil {
		logger = accounts.NopLogger()
	}
	return &LogNotifier{logger: logger, includeTokens: includeTokens}
}

func (n *LogNotifier) NotifyAccountLockedOut(_ context.Context, account *accounts.Account) {
	n.logger.Info("account locked out", "login", account.Login, "email", account.Email)
}

func (n *LogNotifier) NotifyAccountStatusChanged(_ context.Context, account *accounts.Account, active bool) {
	n.logger.Info("account status changed", "login", account.Login, "active", active)
}

func (n *LogNotifier) NotifyAccessLevelChanged(_ context.Context, account *accounts.Account, level accounts.AccessLevel, granted bool) {
	n.logger.Info("access level changed", "login", account.Login, "access_level", level, "granted", granted)
}

func (n *LogNotifier) NotifyTokenIssued(_ context.Context, account *accounts.Account, purpose accounts.TokenPurpose, token *accounts.VerificationToken) {
	args := []any{"login", account.Login, "purpose", purpose}
	if token != nil {
		args = append(args, "token_id", token.ID.String(), "expires_at", token.ExpiresAt)
		if n.includeTokens {
			args = append(args, "token", token.Value)
		}
	}
	n.logger.Info("verification token issued", args...)
}
