package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// LoginHandler serves POST /login. It authenticates the user and starts a
// session named by the optional device id.
type LoginHandler struct {
	Authenticator *service.Authenticator
	TokenService  *service.TokenService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w, r)
		return
	}
	if req.Username == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w, r)
		return
	}

	user, err := h.Authenticator.Authenticate(ctx, req.Username, req.Password, req.OTP)
	if err != nil {
		slogx.FromContext(ctx).Info("login rejected", "username", req.Username, "reason", err.Error())
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.TokenService.Login(ctx, user.Principal(), req.DeviceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeTokens(w, pair)
}
