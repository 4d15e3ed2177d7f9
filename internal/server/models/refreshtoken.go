package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a long-lived opaque credential stored server-side. The
// token string itself is the lookup key. A token is never hard-deleted except
// by the periodic expired-token sweep; revocation is a soft state.
type RefreshToken struct {
	ID        uuid.UUID
	Token     string
	UserID    uuid.UUID
	User      *User
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsExpired reports whether the token's expiry instant has been reached.
// Expiry is strict: a token is expired at exactly ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token can still be redeemed.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked()
}
