package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/internal/platform/health"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Authenticator *service.Authenticator
	TokenService  *service.TokenService

	// Checks are pinged by /readyz.
	Checks map[string]health.Pinger

	// Proxies may set X-Forwarded-For; normally the gateway.
	Proxies httpx.TrustedProxies
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Checks:       map[string]health.Pinger{},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	// Password guessing is limited per IP and per username.
	r.Mux.Handle("POST /login",
		httpx.Chain(&LoginHandler{Authenticator: r.Authenticator, TokenService: r.TokenService},
			httpx.RateLimitByIPAndField(httpx.StrictLimit, r.Proxies, "username"),
		),
	)

	r.Mux.Handle("POST /refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit, r.Proxies),
		),
	)

	r.Mux.Handle("POST /logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.ModerateLimit, r.Proxies),
		),
	)

	r.Mux.Handle("POST /logout-all",
		httpx.Chain(&LogoutAllHandler{TokenService: r.TokenService},
			httpx.RequireIdentity(),
			httpx.RateLimitByUser(httpx.ModerateLimit, r.Proxies),
		),
	)

	r.Mux.Handle("POST /validate",
		httpx.Chain(&ValidateHandler{TokenService: r.TokenService},
			httpx.RateLimitByIP(httpx.LenientLimit, r.Proxies),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(health.LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit, r.Proxies),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(health.ReadyzHandler(r.startTime, r.buildVersion, r.Checks),
			httpx.RateLimitByIP(httpx.LenientLimit, r.Proxies),
		),
	)
}
