package domain

import "time"

// Default role and tier for users created without one.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
	TierFree  = "FREE"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded
	Role         string
	Tier         string
	TOTPSecret   *string // base32, nil when no second factor is enrolled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity tokens are issued for.
func (u User) Principal() Principal {
	return Principal{
		Subject:  u.ID,
		Username: u.Username,
		Role:     u.Role,
		Tier:     u.Tier,
	}
}

// HasTOTP reports whether a second factor is required at login.
func (u User) HasTOTP() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
