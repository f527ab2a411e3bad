package domain

import (
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

// Principal is an authenticated identity ready to be issued tokens.
type Principal struct {
	Subject  string
	Username string
	Role     string
	Tier     string
}

// Ext returns the claim extensions carried in every access token.
func (p Principal) Ext() map[string]string {
	ext := make(map[string]string, 3)
	if p.Username != "" {
		ext[jwtx.ClaimUsername] = p.Username
	}
	if p.Role != "" {
		ext[jwtx.ClaimRole] = p.Role
	}
	if p.Tier != "" {
		ext[jwtx.ClaimTier] = p.Tier
	}
	return ext
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ExpiresIn        time.Duration
	Subject          string
	SessionID        string
	Ext              map[string]string
}
