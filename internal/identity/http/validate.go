package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

// ValidateHandler serves POST /validate. It answers whether the gateway would
// accept a token right now; an invalid token is a 200 with valid=false.
type ValidateHandler struct {
	TokenService *service.TokenService
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ValidateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w, r)
		return
	}

	claims, err := h.TokenService.Introspect(r.Context(), req.Token)
	if err != nil {
		apiErr := apiError(err)
		if apiErr == authsdk.ErrStoreUnavailable || apiErr == authsdk.ErrServerError {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.ValidateResponse{Valid: false, Reason: apiErr.Code})
		return
	}

	exp := claims.ExpiresAt.Time
	httpx.WriteJSON(w, http.StatusOK, authsdk.ValidateResponse{
		Valid:     true,
		Subject:   claims.Subject,
		SessionID: claims.SID,
		ExpiresAt: &exp,
	})
}
