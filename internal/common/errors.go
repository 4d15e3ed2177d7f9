// Package common defines shared constants and sentinel errors used across
// the auth service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Access token validation failed (signature, issuer, audience, or expiry).
	// The error deliberately does not say which check failed.
	ErrInvalidToken = errors.New("invalid token")

	// Refresh token is absent, expired, or revoked. Same non-distinguishing
	// policy as ErrInvalidToken. Store/infrastructure failures are wrapped
	// separately and must not be collapsed into this value.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Validation errors.
	ErrTenantRequired = errors.New("tenant id is required")
)
