// Package refreshtokens provides a PostgreSQL-backed store for the opaque
// refresh tokens used in the token rotation flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/dbx"
	"github.com/formxchange/auth-service/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create generates a fresh opaque token and inserts the row. The insert is a
// single atomic statement, so a cancelled call leaves no orphaned record.
func (r *PostgresRepository) Create(ctx context.Context, userID uuid.UUID, validity time.Duration) (*models.RefreshToken, error) {
	token, err := common.GenerateOpaqueToken(common.RefreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	now := time.Now()
	record := &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(validity),
		CreatedAt: now,
	}

	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query,
		record.Token, record.UserID, record.ExpiresAt, record.CreatedAt).Scan(&record.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

// GetByToken returns the refresh token row for the given token string, with
// the owning user joined in. If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT rt.id, rt.token, rt.user_id, rt.expires_at, rt.created_at, rt.revoked_at,
		       u.email, u.display_name, COALESCE(array_to_string(u.roles, ','), ''), u.tenant_id, u.is_active
		FROM refresh_tokens rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.token = $1
	`

	record := &models.RefreshToken{User: &models.User{}}
	var roles string

	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&record.ID, &record.Token, &record.UserID, &record.ExpiresAt, &record.CreatedAt, &record.RevokedAt,
		&record.User.Email, &record.User.DisplayName, &roles, &record.User.TenantID, &record.User.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	record.User.ID = record.UserID
	record.User.Roles = splitRoles(roles)

	return record, nil
}

// Revoke marks the token revoked unless it already is. The conditional
// update makes concurrent redemption of the same token single-winner: the
// loser sees zero rows affected.
func (r *PostgresRepository) Revoke(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, tokenID, time.Now())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}

// RevokeAllForUser revokes every active token for the user in one statement.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CleanupExpired deletes rows past their expiry, revoked or not. Active and
// revoked-but-unexpired rows are untouched.
func (r *PostgresRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return removed, nil
}

func splitRoles(s string) []models.Role {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make([]models.Role, len(parts))
	for i, p := range parts {
		roles[i] = models.Role(p)
	}
	return roles
}
