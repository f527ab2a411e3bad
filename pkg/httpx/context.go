package httpx

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
)

// Identity headers set by the gateway on requests it forwards. Upstreams
// trust them only because the gateway strips any inbound copies first.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
	HeaderUserTier  = "X-User-Tier"
	HeaderSessionID = "X-Session-Id"
)

// IdentityHeaders lists every header the gateway owns.
var IdentityHeaders = []string{
	HeaderUserID,
	HeaderUserName,
	HeaderUserRole,
	HeaderUserTier,
	HeaderSessionID,
}

// UserIDFromContext returns the subject placed by RequireIdentity.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// RequireIdentity rejects requests that did not arrive through the gateway
// with an authenticated subject and stores that subject in the context.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := r.Header.Get(HeaderUserID)
			if sub == "" {
				SetBearerChallenge(w, "missing_token", "authentication required")
				WriteError(w, r, http.StatusUnauthorized, "missing_token", "authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), CtxKeyUserID, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
