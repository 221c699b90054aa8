package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-clinic/meridian/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Anything outside the taxonomy becomes an opaque 500 so that store
// and signer internals never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "invalid email or password")
	case errors.Is(err, shared.ErrAccountDeactivated):
		Problem(w, http.StatusForbidden, "Account Deactivated", "account is deactivated")
	case errors.Is(err, shared.ErrEmailTaken):
		Problem(w, http.StatusBadRequest, "Email Taken", "email already registered")
	case errors.Is(err, shared.ErrInvalidToken):
		Problem(w, http.StatusUnauthorized, "Invalid Token", "invalid or expired token")
	case errors.Is(err, shared.ErrResetTokenInvalid):
		Problem(w, http.StatusBadRequest, "Invalid Reset Token", "invalid or expired reset token")
	case errors.Is(err, shared.ErrVerificationTokenInvalid):
		Problem(w, http.StatusBadRequest, "Invalid Verification Token", "invalid verification token")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
