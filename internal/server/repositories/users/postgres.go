// Package users provides a PostgreSQL-backed repository for user records.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/dbx"
	"github.com/formxchange/auth-service/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `
	id, email, display_name, COALESCE(array_to_string(roles, ','), ''),
	COALESCE(attributes, '{}'::jsonb), tenant_id, is_active, last_login_at, created_at, updated_at
`

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	attrs, err := json.Marshal(user.Attributes)
	if err != nil {
		return nil, fmt.Errorf("error encoding attributes: %w", err)
	}

	query := `
		INSERT INTO users (email, display_name, roles, attributes, tenant_id, is_active, last_login_at)
		VALUES ($1, $2, COALESCE(string_to_array(NULLIF($3, ''), ','), '{}'), $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, joinRoles(user.Roles), attrs,
		user.TenantID, user.IsActive, user.LastLoginAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	attrs, err := json.Marshal(user.Attributes)
	if err != nil {
		return nil, fmt.Errorf("error encoding attributes: %w", err)
	}

	query := `
		UPDATE users
		SET display_name = $2,
		    roles = COALESCE(string_to_array(NULLIF($3, ''), ','), '{}'),
		    attributes = $4,
		    is_active = $5,
		    last_login_at = $6,
		    updated_at = $7
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.DisplayName, joinRoles(user.Roles), attrs,
		user.IsActive, user.LastLoginAt, time.Now(),
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var roles string
	var attrs []byte

	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &roles, &attrs,
		&user.TenantID, &user.IsActive, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if roles != "" {
		for _, p := range strings.Split(roles, ",") {
			user.Roles = append(user.Roles, models.Role(p))
		}
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &user.Attributes); err != nil {
			return nil, fmt.Errorf("error decoding attributes: %w", err)
		}
	}

	return user, nil
}

func joinRoles(roles []models.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
