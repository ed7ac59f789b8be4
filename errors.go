package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

// Lookup misses. Surfaced to callers as client errors, never retried here.
var (
	ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
				WithTextCode("ACCOUNT_NOT_FOUND").
				WithCode(goerrors.CodeNotFound)

	ErrEmailNotFound = goerrors.New("no account registered for email", goerrors.CategoryNotFound).
				WithTextCode("EMAIL_NOT_FOUND").
				WithCode(goerrors.CodeNotFound)

	ErrTokenNotFound = goerrors.New("action token not found", goerrors.CategoryNotFound).
				WithTextCode("TOKEN_NOT_FOUND").
				WithCode(goerrors.CodeNotFound)

	ErrRoleNotFound = goerrors.New("account does not hold that role", goerrors.CategoryNotFound).
			WithTextCode("ROLE_NOT_FOUND").
			WithCode(goerrors.CodeNotFound)
)

// Conflicts. Distinct from NotFound so callers can branch on "nothing to do"
// vs "can't do".
var (
	ErrAccountConflict = goerrors.New("login or email already taken", goerrors.CategoryConflict).
				WithTextCode("ACCOUNT_CONFLICT").
				WithCode(goerrors.CodeConflict)

	ErrEmailCollision = goerrors.New("email already taken by another account", goerrors.CategoryConflict).
				WithTextCode("EMAIL_COLLISION").
				WithCode(goerrors.CodeConflict)

	ErrNoOpEmailChange = goerrors.New("new email equals the current one", goerrors.CategoryConflict).
				WithTextCode("EMAIL_NO_OP_CHANGE").
				WithCode(goerrors.CodeConflict)

	ErrRoleConflict = goerrors.New("account already holds that role", goerrors.CategoryConflict).
			WithTextCode("ROLE_CONFLICT").
			WithCode(goerrors.CodeConflict)

	ErrAlreadyBlocked = goerrors.New("account is already blocked", goerrors.CategoryConflict).
				WithTextCode("ACCOUNT_ALREADY_BLOCKED").
				WithCode(goerrors.CodeConflict)

	ErrAlreadyUnblocked = goerrors.New("account is not blocked", goerrors.CategoryConflict).
				WithTextCode("ACCOUNT_ALREADY_UNBLOCKED").
				WithCode(goerrors.CodeConflict)

	// ErrOptimisticLock means a profile edit raced with another writer; the
	// caller must refetch and retry, the edit is never silently overwritten.
	ErrOptimisticLock = goerrors.New("account was modified by another writer", goerrors.CategoryConflict).
				WithTextCode("OPTIMISTIC_LOCK_CONFLICT").
				WithCode(goerrors.CodeConflict)
)

// Login failures. The no-such-login case deliberately reports invalid
// credentials so account existence is never revealed.
var (
	ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
				WithTextCode("INVALID_CREDENTIALS").
				WithCode(goerrors.CodeUnauthorized)

	ErrAccountNotActivated = goerrors.New("account registration was not completed", goerrors.CategoryAuth).
				WithTextCode("ACCOUNT_NOT_ACTIVATED").
				WithCode(goerrors.CodeUnauthorized)

	ErrBlockedByAdmin = goerrors.New("account blocked by an administrator", goerrors.CategoryAuth).
				WithTextCode("BLOCKED_BY_ADMIN").
				WithCode(goerrors.CodeUnauthorized)

	ErrBlockedByFailedAttempts = goerrors.New("account blocked after too many failed logins", goerrors.CategoryAuth).
					WithTextCode("BLOCKED_BY_FAILED_ATTEMPTS").
					WithCode(goerrors.CodeUnauthorized)
)

// ErrInvalidOrExpiredToken conflates signature failure and expiry on purpose:
// distinguishing them would leak which condition failed.
var ErrInvalidOrExpiredToken = goerrors.New("token is invalid or expired", goerrors.CategoryAuth).
	WithTextCode("INVALID_OR_EXPIRED_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// ErrIllegalOperation covers structurally disallowed actions: blocking your
// own account, removing the last role, an admin demoting themselves.
var ErrIllegalOperation = goerrors.New("operation is not allowed for this account", goerrors.CategoryValidation).
	WithTextCode("ILLEGAL_OPERATION").
	WithCode(goerrors.CodeBadRequest)

// ErrEmailMissingInToken is a server-side invariant violation: a confirm-email
// token without an embedded candidate address. It fails loudly rather than
// silently.
var ErrEmailMissingInToken = goerrors.New("confirm-email token carries no email payload", goerrors.CategoryInternal).
	WithTextCode("EMAIL_MISSING_IN_TOKEN")

// ErrConfiguration aborts the affected reconciliation run when a configured
// duration pattern cannot be parsed.
var ErrConfiguration = goerrors.New("invalid duration configuration", goerrors.CategoryOperation).
	WithTextCode("CONFIGURATION_ERROR")

// IsNotFound reports whether err is one of the lookup-miss failures.
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// IsConflict reports whether err carries the conflict category.
func IsConflict(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryConflict
	}
	return false
}
