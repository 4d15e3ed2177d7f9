// Package server initializes and runs the auth service: it connects to the
// database, applies migrations, starts the HTTP endpoint, and runs the
// periodic expired-token sweep until shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/formxchange/auth-service/internal/logging"
	"github.com/formxchange/auth-service/internal/server/config"
	"github.com/formxchange/auth-service/internal/server/httpapi"
	"github.com/formxchange/auth-service/internal/server/repositories/repomanager"
	"github.com/formxchange/auth-service/internal/server/services"
)

// sweepTimeout bounds a single expired-token cleanup pass.
const sweepTimeout = 30 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	tokenService *services.TokenService
	userService  *services.UserService
	httpServer   *httpapi.HTTPServer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ts := services.NewTokenService(db, rm, cfg)
	us := services.NewUserService(db, rm)

	hs := httpapi.NewHTTPServer(cfg, logger, ts, us, ts.SigningOptions())

	return &App{
		config:       cfg,
		logger:       logger,
		tokenService: ts,
		userService:  us,
		httpServer:   hs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server error", "error", err)
		cancelFunc()
	}
}

// runCleanupSweeper deletes expired refresh tokens every CleanupInterval
// until the context is cancelled.
func (app *App) runCleanupSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
			removed, err := app.tokenService.CleanupExpired(sweepCtx)
			cancel()
			if err != nil {
				app.logger.Error(ctx, "expired token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				app.logger.Info(ctx, "expired tokens removed", "count", removed)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runCleanupSweeper(ctx)
	}()

	wg.Wait()
}
