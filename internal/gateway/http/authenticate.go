package http

import (
	"net/http"
	"path"
	"strings"

	"github.com/aussiebroadwan/tokengate/internal/gateway/filter"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// Authenticate runs chain for every request. Client-supplied identity
// headers are always removed and the path is cleaned before matching, so
// only the chain can set identity and "/public/../admin" is "/admin".
func Authenticate(chain filter.Filter) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			r = r.Clone(ctx)

			for _, h := range httpx.IdentityHeaders {
				r.Header.Del(h)
			}

			if clean := cleanPath(r.URL.Path); clean != r.URL.Path {
				r.URL.Path = clean
				r.URL.RawPath = ""
			}

			res := chain(ctx, filter.Exchange{
				Path:          r.URL.Path,
				Authorization: r.Header.Get("Authorization"),
			})

			if res.Verdict != filter.Allow {
				apiErr := res.Err
				if apiErr == nil {
					apiErr = authsdk.ErrInvalidToken
				}
				slogx.FromContext(ctx).Info("request rejected",
					"path", r.URL.Path,
					"reason", apiErr.Code,
				)
				apiErr.WriteError(w, r)
				return
			}

			for k, v := range res.Exchange.Inject {
				r.Header[k] = v
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}
