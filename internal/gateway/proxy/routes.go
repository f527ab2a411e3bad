// Package proxy forwards authenticated requests to upstream services by
// path prefix.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var ErrInvalidRoute = errors.New("proxy: invalid route")

// Route sends requests under Prefix to Upstream. With StripPrefix the prefix
// is removed before forwarding, so "/api/auth/login" reaches "/login".
type Route struct {
	Prefix      string
	Upstream    *url.URL
	StripPrefix bool
}

// ParseRoute reads "PREFIX=URL" with an optional ";strip" suffix.
func ParseRoute(s string) (Route, error) {
	s = strings.TrimSpace(s)
	mapping, opts, _ := strings.Cut(s, ";")

	prefix, raw, ok := strings.Cut(mapping, "=")
	prefix = strings.TrimSpace(prefix)
	if !ok || !strings.HasPrefix(prefix, "/") {
		return Route{}, fmt.Errorf("%w: %q", ErrInvalidRoute, s)
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Route{}, fmt.Errorf("%w: bad upstream in %q", ErrInvalidRoute, s)
	}

	r := Route{Prefix: strings.TrimSuffix(prefix, "/"), Upstream: u}
	switch strings.TrimSpace(opts) {
	case "":
	case "strip":
		r.StripPrefix = true
	default:
		return Route{}, fmt.Errorf("%w: unknown option %q", ErrInvalidRoute, opts)
	}
	return r, nil
}

func ParseRoutes(specs []string) ([]Route, error) {
	routes := make([]Route, 0, len(specs))
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		r, err := ParseRoute(s)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// Matches reports whether path falls under the route on a segment boundary.
func (r Route) Matches(path string) bool {
	if r.Prefix == "" {
		return true
	}
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

// Rewrite returns the path as the upstream should see it.
func (r Route) Rewrite(path string) string {
	if !r.StripPrefix {
		return path
	}
	out := strings.TrimPrefix(path, r.Prefix)
	if out == "" {
		return "/"
	}
	return out
}

// sortRoutes orders routes longest prefix first so the most specific wins.
func sortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Prefix) > len(routes[j].Prefix)
	})
}
