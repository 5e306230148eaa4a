// Package redistokens keeps verification tokens in redis. Each token is a
// hash keyed by the SHA-256 of its value; redemption runs as one Lua script
// so concurrent consumers observe exactly one success.
package redistokens

import (
	"context"
	"strconv"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix    = "accounts:token:"
	DefaultRetention = 7 * 24 * time.Hour
)

// consumeScript returns {status, id, account_id, payload, expires_at, created_at}.
// Status is one of missing, expired, used or ok, checked in that order.
var consumeScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
  return {'missing'}
end
local t = {}
for i = 1, #fields, 2 do
  t[fields[i]] = fields[i + 1]
end
if t['purpose'] ~= ARGV[1] then
  return {'missing'}
end
if tonumber(t['expires_at']) <= tonumber(ARGV[2]) then
  return {'expired'}
end
if t['consumed_at'] ~= nil and t['consumed_at'] ~= '' then
  return {'used'}
end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[2])
return {'ok', t['id'], t['account_id'], t['payload'], t['expires_at'], t['created_at']}
`)

// Store implements accounts.TokenRepository. Tokens stored here are not
// part of any accounts.Store transaction.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces the token keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets how long a token key outlives its expiry, so late
// redemptions still report expired or used instead of not found.
func WithRetention(retention time.Duration) Option {
	return func(s *Store) {
		if retention >= 0 {
			s.retention = retention
		}
	}
}

// New creates a token store over client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		prefix:    DefaultPrefix,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) key(hash string) string {
	return s.prefix + hash
}

func (s *Store) IssueToken(ctx context.Context, req accounts.TokenRequest) (*accounts.VerificationToken, error) {
	token, err := accounts.NewVerificationToken(req)
	if err != nil {
		return nil, err
	}

	key := s.key(token.TokenHash)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"id":          token.ID.String(),
			"account_id":  token.AccountID.String(),
			"purpose":     token.Purpose,
			"payload":     token.Payload,
			"expires_at":  strconv.FormatInt(token.ExpiresAt.UnixMilli(), 10),
			"created_at":  strconv.FormatInt(token.CreatedAt.UnixMilli(), 10),
			"consumed_at": "",
		})
		pipe.PExpire(ctx, key, req.TTL+s.retention)
		return nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	return token, nil
}

func (s *Store) ConsumeToken(ctx context.Context, value string, purpose accounts.TokenPurpose, at time.Time) (*accounts.VerificationToken, error) {
	hash := accounts.HashTokenValue(value)
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(hash)}, purpose, at.UnixMilli()).StringSlice()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
	}
	if len(res) == 0 {
		return nil, goerrors.New("empty response from token script", goerrors.CategoryInternal)
	}

	switch res[0] {
	case "missing":
		return nil, accounts.ErrTokenNotFound
	case "expired":
		return nil, accounts.ErrTokenExpired
	case "used":
		return nil, accounts.ErrTokenAlreadyUsed
	case "ok":
	default:
		return nil, goerrors.New("unexpected token script status: "+res[0], goerrors.CategoryInternal)
	}

	if len(res) != 6 {
		return nil, goerrors.New("malformed token script response", goerrors.CategoryInternal)
	}

	return decodeToken(res[1:], value, hash, purpose, at)
}

func decodeToken(fields []string, value, hash string, purpose accounts.TokenPurpose, consumedAt time.Time) (*accounts.VerificationToken, error) {
	id, err := uuid.Parse(fields[0])
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid stored token id")
	}
	accountID, err := uuid.Parse(fields[1])
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid stored account id")
	}
	expiresAt, err := parseMillis(fields[3])
	if err != nil {
		return nil, err
	}
	createdAt, err := parseMillis(fields[4])
	if err != nil {
		return nil, err
	}

	consumed := time.UnixMilli(consumedAt.UnixMilli())
	return &accounts.VerificationToken{
		ID:         id,
		AccountID:  accountID,
		Purpose:    purpose,
		Value:      value,
		TokenHash:  hash,
		Payload:    fields[2],
		ExpiresAt:  expiresAt,
		ConsumedAt: &consumed,
		CreatedAt:  createdAt,
	}, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid stored timestamp")
	}
	return time.UnixMilli(ms), nil
}
