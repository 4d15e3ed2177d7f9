// Package services contains the server-side business logic. This file
// implements TokenService, the orchestrator of the access/refresh token
// lifecycle: login issues a pair, refresh rotates, logout revokes.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/dbx"
	"github.com/formxchange/auth-service/internal/server/auth"
	"github.com/formxchange/auth-service/internal/server/config"
	"github.com/formxchange/auth-service/internal/server/models"
	"github.com/formxchange/auth-service/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token, a long-lived refresh token,
// and the access token's lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// TokenService implements the refresh-token state machine. It is stateless:
// all state lives in the injected store, and every call is independent.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	signing                      auth.Options
	refreshTokenValidityDuration time.Duration
}

// NewTokenService constructs a TokenService using repositories and config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TokenService {
	return &TokenService{
		db:          db,
		repomanager: m,
		signing: auth.Options{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Validity: cfg.AccessTokenValidityDuration,
		},
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// SigningOptions exposes the validation parameters so transport middleware
// can verify bearer tokens with the same configuration used for minting.
func (s *TokenService) SigningOptions() auth.Options {
	return s.signing
}

// Login issues a fresh token pair for an already-authenticated user.
func (s *TokenService) Login(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issuePair(ctx, user, s.db)
}

// Refresh redeems a refresh token for a new pair, rotating the presented
// token: the old one is revoked and a replacement issued in a single
// transaction. An absent, expired, or revoked token yields
// common.ErrInvalidRefreshToken; store failures are wrapped and must be
// treated as transient by the caller.
func (s *TokenService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	current, err := repo.GetByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if !current.IsActive(time.Now()) {
		return nil, common.ErrInvalidRefreshToken
	}

	user := current.User
	if user == nil {
		return nil, common.ErrorNotFound
	}
	if !user.IsActive {
		return nil, common.ErrInvalidRefreshToken
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)

		revoked, err := repoTx.Revoke(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("error revoking refresh token: %w", err)
		}
		if !revoked {
			// A concurrent redemption already rotated this token.
			return common.ErrInvalidRefreshToken
		}

		var genErr error
		pair, genErr = s.issuePair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout revokes every refresh token the user holds, forcing re-login on all
// devices. Outstanding access tokens are not blacklisted; they expire on
// their own within the short access window.
func (s *TokenService) Logout(ctx context.Context, userID uuid.UUID) error {
	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error revoking user tokens: %w", err)
	}
	return nil
}

// CleanupExpired removes refresh tokens past their expiry and returns the
// number of rows deleted. Run periodically, not per request.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	removed, err := repo.CleanupExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("error cleaning up refresh tokens: %w", err)
	}
	return removed, nil
}

func (s *TokenService) issuePair(ctx context.Context, user *models.User, db dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateAccessToken(user, s.signing)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	repo := s.repomanager.RefreshTokens(db)
	refresh, err := repo.Create(ctx, user.ID, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error creating refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int(s.signing.Validity.Seconds()),
	}, nil
}
