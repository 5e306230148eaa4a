package accounts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeDuplicateLogin      = "DUPLICATE_LOGIN"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeOptimisticConflict  = "OPTIMISTIC_CONFLICT"
	TextCodeWeakPassword        = "WEAK_PASSWORD"
	TextCodeMissingOldPassword  = "MISSING_OLD_PASSWORD"
	TextCodePasswordMismatch    = "PASSWORD_MISMATCH"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAccountInactive     = "ACCOUNT_INACTIVE"
	TextCodeAccountUnregistered = "ACCOUNT_UNREGISTERED"
	TextCodeAlreadyGranted      = "ACCESS_LEVEL_ALREADY_GRANTED"
	TextCodeAlreadyRevoked      = "ACCESS_LEVEL_ALREADY_REVOKED"
	TextCodeNeverGranted        = "ACCESS_LEVEL_NEVER_GRANTED"
	TextCodeUnknownAccessLevel  = "UNKNOWN_ACCESS_LEVEL"
	TextCodeTokenNotFound       = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed    = "TOKEN_ALREADY_USED"
	TextCodeInvalidAccountData  = "INVALID_ACCOUNT_DATA"
	TextCodeTokenStoreMissing   = "TOKEN_STORE_MISSING"
)

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateLogin is returned when the login is already taken.
var ErrDuplicateLogin = goerrors.New("login already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateLogin).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateEmail is returned when the email is already taken.
var ErrDuplicateEmail = goerrors.New("email already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrOptimisticConflict is returned when a versioned write lost a race.
// It is the only retryable error, see IsRetryable.
var ErrOptimisticConflict = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeOptimisticConflict).
	WithCode(goerrors.CodeConflict)

// ErrWeakPassword is returned when a password does not satisfy the policy.
var ErrWeakPassword = goerrors.New("password does not satisfy the credential policy", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingOldPassword is returned when a self service change omits the current password.
var ErrMissingOldPassword = goerrors.New("current password is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingOldPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordMismatch is returned when the supplied current password is wrong.
var ErrPasswordMismatch = goerrors.New("current password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned for unknown logins and wrong passwords alike.
var ErrInvalidCredentials = goerrors.New("invalid login or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive is returned when a blocked account tries to authenticate.
var ErrAccountInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeForbidden)

// ErrAccountUnregistered is returned when the account email was never confirmed.
var ErrAccountUnregistered = goerrors.New("account registration is not confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountUnregistered).
	WithCode(goerrors.CodeForbidden)

var ErrAlreadyGranted = goerrors.New("access level already granted", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyGranted).
	WithCode(goerrors.CodeConflict)

var ErrAlreadyRevoked = goerrors.New("access level already revoked", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyRevoked).
	WithCode(goerrors.CodeConflict)

var ErrNeverGranted = goerrors.New("access level was never granted", goerrors.CategoryConflict).
	WithTextCode(TextCodeNeverGranted).
	WithCode(goerrors.CodeConflict)

// ErrUnknownAccessLevel is returned for names outside the catalog.
var ErrUnknownAccessLevel = goerrors.New("unknown access level", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUnknownAccessLevel).
	WithCode(goerrors.CodeNotFound)

// ErrTokenNotFound is returned for unknown values and for tokens issued for another purpose.
var ErrTokenNotFound = goerrors.New("verification token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrTokenExpired = goerrors.New("verification token has expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenAlreadyUsed = goerrors.New("verification token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(goerrors.CodeConflict)

// ErrTokenStoreMissing is returned when a token operation runs without a token repository.
var ErrTokenStoreMissing = goerrors.New("no token repository configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeTokenStoreMissing).
	WithCode(goerrors.CodeInternal)

// IsRetryable reports whether the caller may re read and retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOptimisticConflict)
}

// wrapInternal passes rich errors through and wraps anything else.
func wrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
