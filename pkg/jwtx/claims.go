package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Services override them from configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for renewal tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Well known extension keys carried in Claims.Ext.
const (
	ClaimUsername = "username"
	ClaimRole     = "role"
	ClaimTier     = "tier"
)

// Claims are the access-token claims shared by the identity service and the
// gateway. Additive changes only, the gateway may run an older build.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID, stable across renewals of the same device session.
	SID string `json:"sid,omitempty"`

	// Ext is the open extension map (role, subscription tier, username).
	Ext map[string]string `json:"ext,omitempty"`
}

// NewClaims builds the unsigned part of an access token. Timestamps and the
// token id are stamped by the Codec at issuance.
func NewClaims(subject, sid string, ext map[string]string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		SID:              sid,
		Ext:              maps.Clone(ext),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Get returns an extension claim or "".
func (c Claims) Get(key string) string {
	if c.Ext == nil {
		return ""
	}
	return c.Ext[key]
}

func (c Claims) Username() string { return c.Get(ClaimUsername) }
func (c Claims) Role() string     { return c.Get(ClaimRole) }
func (c Claims) Tier() string     { return c.Get(ClaimTier) }

// Remaining is how long the claims stay valid at now. Zero or negative means
// expired; tokens without an expiry report zero.
func (c Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// ExpiredAt reports whether the claims are expired at now. The expiry is an
// exclusive upper bound: a token is dead at exactly exp.
func (c Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

func (c Claims) clone() Claims {
	out := c
	out.Ext = maps.Clone(c.Ext)
	return out
}
