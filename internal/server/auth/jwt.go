// Package auth mints and verifies access tokens. Tokens are compact JWTs
// signed with HMAC-SHA256 so they stay verifiable by any compliant
// implementation sharing the same secret.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/formxchange/auth-service/internal/common"
	"github.com/formxchange/auth-service/internal/server/models"
)

// Options carries the signing configuration: shared secret, issuer and
// audience values, and the access-token lifetime.
type Options struct {
	Secret   []byte
	Issuer   string
	Audience string
	Validity time.Duration
}

// Claims is the access-token claim set. Alongside the registered claims it
// carries the user's email, display name, tenant and roles.
type Claims struct {
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccessToken mints a signed access token for the user. No side
// effects; the result is a pure function of the user and the options.
func GenerateAccessToken(user *models.User, opts Options) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email:    user.Email,
		Name:     user.DisplayName,
		TenantID: user.TenantID.String(),
		Roles:    user.RoleStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    opts.Issuer,
			Audience:  []string{opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.Validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(opts.Secret)
}

// ValidateToken verifies signature, issuer, audience, and expiry (with zero
// leeway) and returns the decoded claims. On any failure it returns
// common.ErrInvalidToken without revealing which check failed.
func ValidateToken(tokenString string, opts Options) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(opts.Issuer),
		jwt.WithAudience(opts.Audience),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return opts.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken validates the token and extracts the subject as a user
// id. Failures, including a malformed subject, yield common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, opts Options) (uuid.UUID, error) {
	claims, err := ValidateToken(tokenString, opts)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, common.ErrInvalidToken
	}

	return userID, nil
}
