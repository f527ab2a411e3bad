package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshSkew renews the access token this long before it actually expires.
const refreshSkew = 30 * time.Second

// ErrSessionEnded is returned by a Session after logout or a failed refresh.
var ErrSessionEnded = errors.New("authsdk: session ended")

// Session holds one login's token pair and renews the access token when it
// is about to expire. It is safe for concurrent use; concurrent callers
// share one refresh so the renewal token is never presented twice.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	subject      string
	sessionID    string
	expiresAt    time.Time
	ended        bool
}

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.apply(tokens)
	return s
}

// apply stores a token response. The caller holds mu for writing, or owns s.
func (s *Session) apply(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.subject = tokens.Subject
	s.sessionID = tokens.SessionID
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshSkew)
}

// Subject returns the authenticated subject id.
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// SessionID returns the server-side session id.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current renewal token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Token returns a usable access token, refreshing first if it is due.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.ended {
		s.mu.RUnlock()
		return "", ErrSessionEnded
	}
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.ended {
		return "", ErrSessionEnded
	}
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh rotates the token pair now regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	tokens, err := s.client.Refresh(ctx, RefreshRequest{
		Subject:      s.subject,
		SessionID:    s.sessionID,
		RefreshToken: s.refreshToken,
	})
	if err != nil {
		// A rejected renewal token can never succeed again.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			s.ended = true
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.apply(tokens)
	return nil
}

// Get performs an authenticated GET against path on the client's base URL.
func (s *Session) Get(ctx context.Context, path string) (*http.Response, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Get(ctx, path, token)
}

// Logout ends this session on the server. The session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.ended = true
	return s.client.Logout(ctx, s.accessToken)
}

// LogoutAll ends every session of this subject, including this one.
func (s *Session) LogoutAll(ctx context.Context) (*LogoutAllResponse, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.LogoutAll(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	return resp, nil
}
