package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tokengate/internal/identity/http"
	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/internal/identity/store"
	"github.com/aussiebroadwan/tokengate/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the identity service: login, renewal and logout.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	creds *credstore.Retrying

	tokenService        *service.TokenService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: cfg.Log.Logger("identity-service", BuildVersion),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}

	created, err := app.userService.EnsureBootstrapUser(context.Background(), cfg.BootstrapUsername, cfg.BootstrapPassword)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	if created {
		app.logger.Info("bootstrap user created", "username", cfg.BootstrapUsername)
	}

	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}
	return app, nil
}

// Handler exposes the routed handler, used to serve in-process.
func (app *Application) Handler() http.Handler { return app.router }

// Run blocks until a shutdown signal or a server error.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.closeStores()

	app.logger.Info("identity service stopped")
	return nil
}

// Close releases the stores without serving. Used when the application was
// only mounted in-process.
func (app *Application) Close() { app.closeStores() }

func (app *Application) closeStores() {
	if app.creds != nil {
		if err := app.creds.Close(); err != nil {
			app.logger.Error("error closing credential store", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
		}
	}
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() error {
	codec, err := app.cfg.Codec.Codec(true)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	creds, err := app.cfg.Store.Open()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	app.creds = creds

	app.tokenService = &service.TokenService{
		Codec:      codec,
		Store:      creds,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.userService = &service.UserService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
		Logger: app.logger,
	}
	app.housekeepingService = service.NewHousekeepingService(
		creds,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.logger.Info("token codec ready", "alg", codec.Alg(), "store", app.cfg.Store.Driver)
	return nil
}

func (app *Application) initHTTP() error {
	proxies, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(BuildVersion, app.logger)
	router.Proxies = proxies

	router.Authenticator = &service.Authenticator{Users: app.db.Users(), Now: app.tokenService.Codec.Now}
	router.TokenService = app.tokenService
	router.Checks["credstore"] = app.creds
	router.Checks["database"] = app.db
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
