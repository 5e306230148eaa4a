package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const tokenBytes = 32

// NewTokenValue returns 32 random bytes encoded as unpadded base64url.
func NewTokenValue() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashTokenValue returns the hex encoded SHA-256 of value, the only form
// stores keep at rest.
func HashTokenValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewVerificationToken builds the token described by req with a fresh value.
// Store implementations call it from IssueToken.
func NewVerificationToken(req TokenRequest) (*VerificationToken, error) {
	if req.AccountID == uuid.Nil {
		return nil, goerrors.New("token request requires an account id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if req.Purpose == "" {
		return nil, goerrors.New("token request requires a purpose", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if req.TTL <= 0 {
		return nil, goerrors.New("token request requires a positive ttl", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if req.IssuedAt.IsZero() {
		return nil, goerrors.New("token request requires an issue time", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	value, err := NewTokenValue()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token value")
	}

	return &VerificationToken{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		Purpose:   req.Purpose,
		Value:     value,
		TokenHash: HashTokenValue(value),
		Payload:   req.Payload,
		ExpiresAt: req.IssuedAt.Add(req.TTL),
		CreatedAt: req.IssuedAt,
	}, nil
}
