package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/internal/identity/store"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpOpts matches the parameters used at enrolment.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same argon2 work as a real comparison so
// unknown usernames are not distinguishable by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("tokengate-dummy-password")
	})
	_ = cryptox.VerifyPassword(password, dummyHash)
}

// Authenticator checks a username and password, plus a TOTP code for users
// who enrolled one.
type Authenticator struct {
	Users store.Users
	Now   func() time.Time
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Authenticator) Authenticate(ctx context.Context, username, password, code string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	u, err := a.Users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		burnPasswordCheck(password)
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Error("stored password hash unusable",
				slog.String("user_id", u.ID), slog.Any("error", err))
		}
		return domain.User{}, ErrInvalidCredentials
	}

	if u.HasTOTP() {
		if code == "" {
			return domain.User{}, ErrOTPRequired
		}
		ok, err := totp.ValidateCustom(strings.TrimSpace(code), *u.TOTPSecret, a.now().UTC(), totpOpts)
		if err != nil || !ok {
			return domain.User{}, ErrInvalidCredentials
		}
	}

	return u, nil
}
