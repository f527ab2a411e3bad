package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

var errOTPRequired = authsdk.NewAPIError(http.StatusUnauthorized,
	authsdk.ErrorCodeInvalidCredentials, "one-time password required")

// apiError maps a service error onto its wire representation. Order matters:
// a missing session also matches ErrExpiredCredential.
func apiError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		return authsdk.ErrStoreUnavailable
	case errors.Is(err, service.ErrMissingCredential):
		return authsdk.ErrMissingToken
	case errors.Is(err, service.ErrMalformedCredential), errors.Is(err, service.ErrBadSignature):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrRevokedCredential):
		return authsdk.ErrTokenRevoked
	case errors.Is(err, service.ErrReplayedRenewal):
		return authsdk.ErrRefreshReplayed
	case errors.Is(err, service.ErrSessionNotFound):
		return authsdk.ErrSessionNotFound
	case errors.Is(err, service.ErrExpiredCredential):
		return authsdk.ErrTokenExpired
	case errors.Is(err, service.ErrOTPRequired):
		return errOTPRequired
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	default:
		return authsdk.ErrServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr == authsdk.ErrServerError {
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
	}
	apiErr.WriteError(w, r)
}
