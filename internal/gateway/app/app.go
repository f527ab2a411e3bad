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

	"github.com/aussiebroadwan/tokengate/internal/gateway/filter"
	gatewayhttp "github.com/aussiebroadwan/tokengate/internal/gateway/http"
	"github.com/aussiebroadwan/tokengate/internal/gateway/proxy"
	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the edge gateway. It verifies access tokens and forwards
// authenticated requests; it holds no signing key.
type Application struct {
	cfg    Config
	logger *slog.Logger

	creds *credstore.Retrying

	server *http.Server
	router *gatewayhttp.Router
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: cfg.Log.Logger("gateway", BuildVersion),
	}

	codec, err := cfg.Codec.Codec(false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	routes, err := proxy.ParseRoutes(cfg.Routes)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes configured", proxy.ErrInvalidRoute)
	}

	proxies, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	creds, err := cfg.Store.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	app.creds = creds

	router := gatewayhttp.NewRouter(BuildVersion, app.logger)
	router.Proxies = proxies
	router.Chain = filter.Default(codec, creds, cfg.PublicPaths...)
	router.Upstream = proxy.New(routes, cfg.UpstreamTimeout)
	router.Checks["credstore"] = creds
	router.ApplyRoutes()
	app.router = router

	for _, r := range routes {
		app.logger.Info("route", "prefix", r.Prefix, "upstream", r.Upstream.String(), "strip", r.StripPrefix)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return app, nil
}

// Handler exposes the routed handler, used to serve in-process.
func (app *Application) Handler() http.Handler { return app.router }

// Run blocks until a shutdown signal or a server error.
func (app *Application) Run() error {
	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.Close()
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
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.Close()
	app.logger.Info("gateway stopped")
	return nil
}

// Close releases the credential store.
func (app *Application) Close() {
	if err := app.creds.Close(); err != nil {
		app.logger.Error("error closing credential store", "error", err)
	}
}
