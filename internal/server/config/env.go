package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first if present; already-set variables
// win over the file.
//
// Recognized variables:
//
//	AUTH_HTTP_ADDR       HTTP bind address
//	DATABASE_DSN         PostgreSQL DSN
//	JWT_SECRET           HMAC signing secret
//	JWT_ISSUER           token issuer
//	JWT_AUDIENCE         token audience
//	ACCESS_TOKEN_TTL     access token lifetime, Go duration ("15m")
//	REFRESH_TOKEN_TTL    refresh token lifetime, Go duration ("168h")
//	CLEANUP_INTERVAL     expired-token sweep interval, Go duration
//	CORS_ALLOWED_ORIGIN  SPA origin
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString(&config.EndpointAddrHTTP, "AUTH_HTTP_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.JWTIssuer, "JWT_ISSUER")
	setString(&config.JWTAudience, "JWT_AUDIENCE")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	setDuration(&config.CleanupInterval, "CLEANUP_INTERVAL")
	setString(&config.CORSAllowedOrigin, "CORS_ALLOWED_ORIGIN")
}
