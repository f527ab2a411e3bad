package proxy

import (
	"net"
	"net/http"
	"net/http/httputil"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// Proxy picks the longest matching route and forwards through a
// ReverseProxy. Unmatched paths get a 404 in the shared error format.
type Proxy struct {
	routes []Route
	proxy  *httputil.ReverseProxy
}

func New(routes []Route, timeout time.Duration) *Proxy {
	routes = slices.Clone(routes)
	sortRoutes(routes)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p := &Proxy{routes: routes}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: p.rewrite,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed", "error", err)
			authsdk.ErrBadGateway.WriteError(w, r)
		},
	}
	return p
}

func (p *Proxy) match(path string) (Route, bool) {
	for _, r := range p.routes {
		if r.Matches(path) {
			return r, true
		}
	}
	return Route{}, false
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := p.match(r.URL.Path); !ok {
		authsdk.ErrNotFound.WriteError(w, r)
		return
	}
	p.proxy.ServeHTTP(w, r)
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	route, _ := p.match(pr.In.URL.Path)

	pr.SetURL(route.Upstream)
	pr.Out.URL.Path = joinPath(route.Upstream.Path, route.Rewrite(pr.In.URL.Path))
	pr.Out.URL.RawPath = ""
	pr.SetXForwarded()
}

func joinPath(base, p string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return p
	}
	if p == "/" {
		return base
	}
	return base + p
}
