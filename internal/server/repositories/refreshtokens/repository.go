// Package refreshtokens declares the repository contract for the durable
// refresh-token store.
package refreshtokens

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/server/models"
)

// Repository is the durable record of outstanding refresh tokens, queryable
// by the opaque token string.
type Repository interface {
	// Create generates a new opaque token for userID with an expiry of
	// now+validity, stores it, and returns the stored record. The token
	// column carries a uniqueness constraint.
	Create(ctx context.Context, userID uuid.UUID, validity time.Duration) (*models.RefreshToken, error)

	// GetByToken looks a token up by exact string match, including the owning
	// user. Returns common.ErrorNotFound when the token is absent.
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke sets the revocation timestamp if it is not already set. The
	// boolean reports whether this call performed the revocation; a racing
	// second caller observes false. Revoking an already-revoked token is not
	// an error.
	Revoke(ctx context.Context, tokenID uuid.UUID) (bool, error)

	// RevokeAllForUser revokes every currently-active token owned by the user.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error

	// CleanupExpired deletes all rows whose expiry has passed, regardless of
	// revocation state, and returns the number of rows removed. Intended as a
	// periodic maintenance sweep, not a per-request call.
	CleanupExpired(ctx context.Context) (int64, error)
}
