package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    authsdk.TokenTypeBearer,
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
		Subject:      p.Subject,
		SessionID:    p.SessionID,
		Username:     p.Ext[jwtx.ClaimUsername],
		Role:         p.Ext[jwtx.ClaimRole],
		Tier:         p.Ext[jwtx.ClaimTier],
	}
}

func writeTokens(w http.ResponseWriter, p domain.TokenPair) {
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(p))
}
