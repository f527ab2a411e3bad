package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

// RefreshHandler serves POST /refresh. The renewal token is single use; a
// replay revokes the whole session.
type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w, r)
		return
	}
	if req.Subject == "" || req.SessionID == "" {
		authsdk.ErrInvalidRequest.WriteError(w, r)
		return
	}

	key := domain.SessionKey{Subject: req.Subject, SessionID: req.SessionID}
	pair, err := h.TokenService.Refresh(r.Context(), key, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeTokens(w, pair)
}
