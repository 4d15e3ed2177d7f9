// Package httpapi exposes the token lifecycle over HTTP/JSON for the SPA and
// the other services.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/formxchange/auth-service/internal/logging"
	"github.com/formxchange/auth-service/internal/server/auth"
	"github.com/formxchange/auth-service/internal/server/config"
	"github.com/formxchange/auth-service/internal/server/services"
)

// requestTimeout bounds every handler call against the backing store.
const requestTimeout = 5 * time.Second

const shutdownTimeout = 10 * time.Second

// TokenService is the slice of the token service the HTTP layer needs.
type TokenService interface {
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

// UserService is the slice of the user service the HTTP layer needs.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*services.Profile, error)
	GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type HTTPServer struct {
	address    string
	logger     logging.Logger
	tokens     TokenService
	users      UserService
	signing    auth.Options
	corsOrigin string
}

func NewHTTPServer(cfg *config.Config, l logging.Logger, ts TokenService, us UserService, signing auth.Options) *HTTPServer {
	return &HTTPServer{
		address:    cfg.EndpointAddrHTTP,
		logger:     l.With("module", "http_server"),
		tokens:     ts,
		users:      us,
		signing:    signing,
		corsOrigin: cfg.CORSAllowedOrigin,
	}
}

// router wires the public routes. /refresh and /ping are reachable without a
// bearer token; everything else sits behind the auth middleware.
func (s *HTTPServer) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/ping", s.handlePing).Methods(http.MethodGet)

	protected := r.PathPrefix("/api/auth").Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	protected.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/permissions", s.handlePermissions).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.corsOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
