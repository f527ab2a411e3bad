package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/internal/identity/store"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/idx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const MinPasswordLength = 8

var (
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
)

// UserService manages the accounts that can log in.
type UserService struct {
	Store  store.Store
	Issuer string // shown by authenticator apps
	Logger *slog.Logger
}

type NewUser struct {
	Username string
	Password string
	Role     string
	Tier     string
}

func (s *UserService) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || len(username) > domain.MaxKeyComponent || strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, ErrInvalidUsername
	}
	if len(in.Password) < MinPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         orDefault(in.Role, domain.RoleUser),
		Tier:         orDefault(in.Tier, domain.TierFree),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserService) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
}

// EnrollTOTP generates and stores a TOTP secret for username, returning the
// secret and its otpauth:// URL. Logins require a code from then on.
func (s *UserService) EnrollTOTP(ctx context.Context, username string) (secret, url string, err error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", err
	}
	if u.HasTOTP() {
		return "", "", ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      orDefault(s.Issuer, "tokengate"),
		AccountName: u.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp key: %w", err)
	}

	sec := key.Secret()
	if err := s.Store.Users().UpdateTOTPSecret(ctx, u.ID, &sec); err != nil {
		return "", "", err
	}
	return sec, key.URL(), nil
}

func (s *UserService) DisableTOTP(ctx context.Context, username string) error {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdateTOTPSecret(ctx, u.ID, nil)
}

// EnsureBootstrapUser creates an ADMIN account when the user table is empty.
// An empty password generates one, which is logged once.
func (s *UserService) EnsureBootstrapUser(ctx context.Context, username, password string) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty || username == "" {
		return false, nil
	}

	generated := password == ""
	if generated {
		if password, err = cryptox.GeneratePassword(); err != nil {
			return false, err
		}
	}

	u, err := s.CreateUser(ctx, NewUser{Username: username, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return false, fmt.Errorf("create bootstrap user: %w", err)
	}

	if s.Logger != nil {
		attrs := []any{slog.String("username", u.Username), slog.String("user_id", u.ID)}
		if generated {
			attrs = append(attrs, slog.String("password", password))
		}
		s.Logger.Warn("bootstrap admin created", attrs...)
	}
	return true, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
