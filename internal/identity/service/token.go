package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/aussiebroadwan/tokengate/pkg/credstore"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/idx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// TokenService issues, renews and revokes credentials. It holds no mutable
// state of its own; every coordination point is a single-key store operation.
type TokenService struct {
	Codec      *jwtx.Codec
	Store      credstore.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) now() time.Time { return s.Codec.Now() }

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Login issues a fresh token pair for an already authenticated principal.
// deviceID names the session; logging in again from the same device
// replaces that session's renewal record.
func (s *TokenService) Login(ctx context.Context, p domain.Principal, deviceID string) (domain.TokenPair, error) {
	sid := deviceID
	if sid == "" {
		sid = idx.New()
	}

	key := domain.SessionKey{Subject: p.Subject, SessionID: sid}
	if err := key.Validate(); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrMalformedCredential, err)
	}

	pair, rec, err := s.mint(key, p.Ext())
	if err != nil {
		return domain.TokenPair{}, err
	}

	enc, err := rec.Encode()
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.Store.Put(ctx, key.String(), enc, s.refreshTTL()); err != nil {
		return domain.TokenPair{}, storeError(err)
	}

	slogx.FromContext(ctx).Info("session started",
		slog.String("sub", key.Subject),
		slog.String("sid", key.SessionID),
	)
	return pair, nil
}

// mint signs an access token and generates a renewal token plus the record
// that will represent it in the store.
func (s *TokenService) mint(key domain.SessionKey, ext map[string]string) (domain.TokenPair, domain.RenewalRecord, error) {
	now := s.now()
	claims := s.Codec.Stamp(jwtx.NewClaims(key.Subject, key.SessionID, ext), s.accessTTL())
	access, err := s.Codec.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, domain.RenewalRecord{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := cryptox.NewRenewalToken()
	if err != nil {
		return domain.TokenPair{}, domain.RenewalRecord{}, err
	}

	// The record keeps the exact issue time so it expires with its store entry.
	rec := domain.RenewalRecord{
		Fingerprint: cryptox.FingerprintToken(refresh),
		Subject:     key.Subject,
		SessionID:   key.SessionID,
		Ext:         claims.Ext,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.refreshTTL()),
	}

	pair := domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: rec.ExpiresAt,
		ExpiresIn:        s.accessTTL(),
		Subject:          key.Subject,
		SessionID:        key.SessionID,
		Ext:              claims.Ext,
	}
	return pair, rec, nil
}

// Refresh exchanges the session's current renewal token for a new pair.
//
// Each renewal token is single use. Presenting one that is no longer current,
// or losing a concurrent rotation race, is treated as theft: the session is
// deleted and ErrReplayedRenewal returned, so every holder must log in again.
func (s *TokenService) Refresh(ctx context.Context, key domain.SessionKey, presented string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx).With(slog.String("sub", key.Subject), slog.String("sid", key.SessionID))

	if presented == "" {
		return domain.TokenPair{}, ErrMissingCredential
	}
	if err := key.Validate(); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrMalformedCredential, err)
	}

	current, err := s.Store.Get(ctx, key.String())
	if errors.Is(err, credstore.ErrNotFound) {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrSessionNotFound, ErrExpiredCredential)
	}
	if err != nil {
		return domain.TokenPair{}, storeError(err)
	}

	rec, err := domain.DecodeRenewalRecord(current)
	if err != nil {
		log.Error("discarding unreadable renewal record", slog.Any("error", err))
		s.dropSession(ctx, key)
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrSessionNotFound, ErrExpiredCredential)
	}

	if rec.ExpiredAt(s.now()) {
		s.dropSession(ctx, key)
		return domain.TokenPair{}, ErrExpiredCredential
	}

	if rec.Key() != key || !cryptox.MatchFingerprint(presented, rec.Fingerprint) {
		log.Warn("renewal token replay detected, revoking session",
			slogx.TokenAttr("presented", presented),
		)
		s.dropSession(ctx, key)
		return domain.TokenPair{}, ErrReplayedRenewal
	}

	pair, next, err := s.mint(key, rec.Ext)
	if err != nil {
		return domain.TokenPair{}, err
	}
	enc, err := next.Encode()
	if err != nil {
		return domain.TokenPair{}, err
	}

	swapped, err := s.Store.CompareAndSwap(ctx, key.String(), current, enc, s.refreshTTL())
	if err != nil {
		return domain.TokenPair{}, storeError(err)
	}
	if !swapped {
		log.Warn("concurrent renewal detected, revoking session")
		s.dropSession(ctx, key)
		return domain.TokenPair{}, ErrReplayedRenewal
	}

	log.Info("session renewed")
	return pair, nil
}

// dropSession deletes a renewal record on a best-effort basis.
func (s *TokenService) dropSession(ctx context.Context, key domain.SessionKey) {
	if err := s.Store.Delete(ctx, key.String()); err != nil {
		slogx.FromContext(ctx).Warn("failed to delete session",
			slog.String("sub", key.Subject),
			slog.String("sid", key.SessionID),
			slog.Any("error", err),
		)
	}
}

// Logout ends one session and revokes the access token that asked for it.
// Deleting the record is best effort; failing to plant the revocation marker
// is reported since the token would otherwise stay usable.
func (s *TokenService) Logout(ctx context.Context, key domain.SessionKey, accessToken string) error {
	if err := key.Validate(); err == nil {
		s.dropSession(ctx, key)
	}

	if accessToken == "" {
		return nil
	}
	if err := s.RevokeAccess(ctx, accessToken); err != nil && errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	slogx.FromContext(ctx).Info("session ended",
		slog.String("sub", key.Subject),
		slog.String("sid", key.SessionID),
	)
	return nil
}

// LogoutAll deletes every session of subject and revokes the presenting
// access token. Other outstanding access tokens die within AccessTTL.
func (s *TokenService) LogoutAll(ctx context.Context, subject, accessToken string) (int, error) {
	prefix, err := domain.SubjectPrefix(subject)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedCredential, err)
	}

	n, err := s.Store.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, storeError(err)
	}

	if accessToken != "" {
		claims, perr := s.Codec.Parse(accessToken)
		if (perr == nil || errors.Is(perr, jwtx.ErrExpired)) && claims.Subject == subject {
			if err := s.RevokeAccess(ctx, accessToken); err != nil {
				slogx.FromContext(ctx).Warn("failed to revoke access token", slog.Any("error", err))
			}
		}
	}

	slogx.FromContext(ctx).Info("all sessions ended", slog.String("sub", subject), slog.Int("sessions", n))
	return n, nil
}

// RevokeAccess plants a revocation marker for accessToken that lives exactly
// as long as the token would have. Expired tokens need no marker.
func (s *TokenService) RevokeAccess(ctx context.Context, accessToken string) error {
	claims, err := s.Codec.Parse(accessToken)
	if errors.Is(err, jwtx.ErrExpired) {
		return nil
	}
	if err != nil {
		return codecError(err)
	}

	remaining := claims.Remaining(s.now())
	if remaining <= 0 {
		return nil
	}

	key := domain.RevocationKey(cryptox.FingerprintToken(accessToken))
	if err := s.Store.Put(ctx, key, claims.Subject, remaining); err != nil {
		return storeError(err)
	}
	return nil
}

// Introspect validates accessToken exactly as the gateway would.
func (s *TokenService) Introspect(ctx context.Context, accessToken string) (jwtx.Claims, error) {
	if accessToken == "" {
		return jwtx.Claims{}, ErrMissingCredential
	}

	claims, err := s.Codec.Parse(accessToken)
	if err != nil {
		return claims, codecError(err)
	}

	revoked, err := s.Store.Exists(ctx, domain.RevocationKey(cryptox.FingerprintToken(accessToken)))
	if err != nil {
		return claims, storeError(err)
	}
	if revoked {
		return claims, ErrRevokedCredential
	}
	return claims, nil
}
