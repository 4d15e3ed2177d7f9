package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/server/models"
	"github.com/formxchange/auth-service/internal/server/rbac"
	"github.com/formxchange/auth-service/internal/server/repositories/repomanager"
)

// Profile is the user view served by /me.
type Profile struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName"`
	Roles       []string       `json:"roles"`
	Attributes  map[string]any `json:"attributes"`
	TenantID    uuid.UUID      `json:"tenantId"`
}

// UserService provides the user read model (profile, permissions) and the
// identity-provider upsert used on login.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService over the given repositories.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// GetProfile returns the profile for userID, or common.ErrorNotFound.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	attrs := user.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}

	return &Profile{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.RoleStrings(),
		Attributes:  attrs,
		TenantID:    user.TenantID,
	}, nil
}

// GetPermissions returns the deduplicated permission set granted by the
// user's roles via the static rbac table.
func (s *UserService) GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	return rbac.PermissionsFor(user.Roles), nil
}

// GetOrCreateFromIdentity upserts a user after an identity-provider login.
// Existing users (matched by email) get their display name, attributes, and
// last-login refreshed. New users are created with the FormUser role.
// The tenant is a required input: identity-provider integrations must resolve
// it before calling, there is no default tenant.
func (s *UserService) GetOrCreateFromIdentity(ctx context.Context, email, displayName string, tenantID uuid.UUID, attributes map[string]any) (*models.User, error) {
	if tenantID == uuid.Nil {
		return nil, common.ErrTenantRequired
	}

	repo := s.repomanager.Users(s.db)
	now := time.Now()

	existing, err := repo.GetByEmail(ctx, email)
	if err == nil {
		existing.DisplayName = displayName
		existing.LastLoginAt = &now
		if attributes != nil {
			existing.Attributes = attributes
		}
		updated, err := repo.Update(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("error updating user: %w", err)
		}
		return updated, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if attributes == nil {
		attributes = map[string]any{}
	}
	user := &models.User{
		Email:       email,
		DisplayName: displayName,
		Roles:       []models.Role{models.RoleFormUser},
		Attributes:  attributes,
		TenantID:    tenantID,
		IsActive:    true,
		LastLoginAt: &now,
	}

	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}
