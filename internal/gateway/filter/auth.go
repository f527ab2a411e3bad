package filter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// PublicPath allows requests under any of paths without a token. A path
// ending in "/" matches everything below it; otherwise the match is the path
// itself or its sub-paths, so "/login" does not match "/login-admin".
func PublicPath(paths ...string) Filter {
	return func(_ context.Context, ex Exchange) Result {
		for _, p := range paths {
			if matchPath(ex.Path, p) {
				return Permit(ex)
			}
		}
		return Next(ex)
	}
}

func matchPath(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern) || path == strings.TrimSuffix(pattern, "/")
	}
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}

// ExtractBearer rejects requests without a well formed bearer header.
func ExtractBearer() Filter {
	return func(_ context.Context, ex Exchange) Result {
		token, ok := httpx.ParseBearer(ex.Authorization)
		if !ok {
			return Deny(ex, authsdk.ErrMissingToken)
		}
		ex.Token = token
		return Next(ex)
	}
}

// CheckRevocation rejects tokens that logout has marked. An unreachable
// store fails closed.
func CheckRevocation(store credstore.Store) Filter {
	return func(ctx context.Context, ex Exchange) Result {
		revoked, err := store.Exists(ctx, domain.RevocationKey(cryptox.FingerprintToken(ex.Token)))
		if err != nil {
			slogx.FromContext(ctx).Error("revocation check failed", slog.Any("error", err))
			return Deny(ex, authsdk.ErrStoreUnavailable)
		}
		if revoked {
			return Deny(ex, authsdk.ErrTokenRevoked)
		}
		return Next(ex)
	}
}

// VerifyToken checks signature and expiry and allows the request with the
// identity headers derived from the claims.
func VerifyToken(codec *jwtx.Codec) Filter {
	return func(_ context.Context, ex Exchange) Result {
		claims, err := codec.Parse(ex.Token)
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return Deny(ex, authsdk.ErrTokenExpired)
		case err != nil:
			return Deny(ex, authsdk.ErrInvalidToken)
		}

		ex.Claims = claims
		ex.Inject = IdentityHeaders(claims)
		return Permit(ex)
	}
}

// IdentityHeaders renders claims as the headers upstreams trust.
func IdentityHeaders(c jwtx.Claims) http.Header {
	h := http.Header{}
	h.Set(httpx.HeaderUserID, c.Subject)
	h.Set(httpx.HeaderSessionID, c.SID)
	for header, v := range map[string]string{
		httpx.HeaderUserName: c.Username(),
		httpx.HeaderUserRole: c.Role(),
		httpx.HeaderUserTier: c.Tier(),
	} {
		if v != "" {
			h.Set(header, v)
		}
	}
	return h
}

// Default builds the standard chain: public paths, bearer extraction,
// revocation check, verification.
func Default(codec *jwtx.Codec, store credstore.Store, publicPaths ...string) Filter {
	return Chain(
		PublicPath(publicPaths...),
		ExtractBearer(),
		CheckRevocation(store),
		VerifyToken(codec),
	)
}
