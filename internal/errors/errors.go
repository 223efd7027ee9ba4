package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth surface
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotConfirmed   = errors.New("user is not confirmed")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")

	// Verification code errors
	ErrCodeMismatch    = errors.New("verification code mismatch")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrAlreadyVerified = errors.New("user already verified")

	// Identity provider errors
	ErrLimitExceeded    = errors.New("identity provider limit exceeded")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Token errors
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// OAuth errors
	ErrInvalidProvider = errors.New("invalid provider")
	ErrMissingCode     = errors.New("missing authorization code")
	ErrExchangeFailed  = errors.New("authorization code exchange failed")

	// General errors
	ErrRateLimited = errors.New("rate limited")
	ErrInternal    = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
