package authsdk

import "time"

// ============================================================================
// Token Types
// ============================================================================

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`

	// OTP is the current TOTP code for users with a second factor enrolled
	OTP string `json:"otp,omitempty"`

	// DeviceID names the session. Logging in again from the same device
	// replaces that device's session. A fresh id is assigned when empty.
	DeviceID string `json:"deviceId,omitempty"`
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	Subject      string `json:"subject"`
	SessionID    string `json:"sessionId"`
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by /login and /refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expiresIn"`

	Subject   string `json:"subject"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	Tier      string `json:"tier,omitempty"`
}

// LogoutAllResponse is returned by /logout-all.
type LogoutAllResponse struct {
	RevokedSessions int `json:"revokedSessions"`
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	Token string `json:"token"`
}

// ValidateResponse reports whether an access token would pass the gateway.
type ValidateResponse struct {
	Valid bool `json:"valid"`

	// Reason is the wire error code when Valid is false
	Reason string `json:"reason,omitempty"`

	Subject   string     `json:"subject,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks maps each dependency to "ok" or "error" (only for /readyz)
	Checks map[string]string `json:"checks,omitempty"`
}
