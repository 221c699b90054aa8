package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated indicates the account exists but is disabled.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken indicates a bearer or verification token that does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrResetTokenInvalid indicates a password reset token that is unknown or expired.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrVerificationTokenInvalid indicates an email verification token that matches no account.
	ErrVerificationTokenInvalid = errors.New("invalid verification token")
)
