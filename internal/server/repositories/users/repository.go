// Package users declares the repository contract for user records.
package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/server/models"
)

// Repository defines the user persistence operations the token core needs:
// lookups when minting tokens and serving profile/permission reads, plus the
// create/update pair used by identity-provider logins.
type Repository interface {
	// GetByID returns a user by id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail returns a user by email, or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Create inserts a new user and returns it with generated fields set.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// Update persists mutable profile fields (display name, attributes,
	// roles, active flag, last login) and bumps updated_at.
	Update(ctx context.Context, user *models.User) (*models.User, error)
}
