package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrBadSignature        = errors.New("bad signature")
	ErrExpiredCredential   = errors.New("credential expired")
	ErrRevokedCredential   = errors.New("credential revoked")
	ErrReplayedRenewal     = errors.New("renewal credential replayed")
	ErrSessionNotFound     = errors.New("session not found")
	ErrStoreUnavailable    = errors.New("credential store unavailable")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPRequired        = errors.New("one-time password required")
)

// codecError maps a jwtx parse failure onto the credential taxonomy.
func codecError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtx.ErrExpired):
		return fmt.Errorf("%w: %w", ErrExpiredCredential, err)
	case errors.Is(err, jwtx.ErrBadSignature), errors.Is(err, jwtx.ErrIssuer):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedCredential, err)
	}
}

// storeError marks credential store outages so handlers fail closed.
func storeError(err error) error {
	if errors.Is(err, credstore.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
