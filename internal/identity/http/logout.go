package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// LogoutHandler serves POST /logout. The session is taken from the bearer
// token's claims; an expired but correctly signed token still ends its
// session. The response is 200 whatever the token's state.
type LogoutHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if token, ok := httpx.BearerToken(r); ok {
		claims, err := h.TokenService.Codec.Parse(token)
		switch {
		case err == nil, errors.Is(err, jwtx.ErrExpired):
			key := domain.SessionKey{Subject: claims.Subject, SessionID: claims.SID}
			if err := h.TokenService.Logout(ctx, key, token); err != nil {
				log.Warn("logout incomplete", "error", err)
			}
		default:
			log.Debug("logout with unusable token", "error", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// LogoutAllHandler serves POST /logout-all for the subject the gateway
// authenticated.
type LogoutAllHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		authsdk.ErrMissingToken.WriteError(w, r)
		return
	}

	token, _ := httpx.BearerToken(r)
	n, err := h.TokenService.LogoutAll(r.Context(), subject, token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutAllResponse{RevokedSessions: n})
}
