package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gateway/filter"
	"github.com/aussiebroadwan/tokengate/internal/platform/health"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// Router serves the gateway's own probes and sends everything else through
// the edge filter to Upstream.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Chain    filter.Filter
	Upstream http.Handler
	Checks   map[string]health.Pinger

	// Proxies in front of the gateway, if any. Empty at the edge.
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

	r.Mux.Handle("/",
		httpx.Chain(r.Upstream,
			httpx.RateLimitByIP(httpx.PublicLimit, r.Proxies),
			Authenticate(r.Chain),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
