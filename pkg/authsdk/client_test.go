package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// fakeIdentity answers /login and /refresh, rotating a counter per refresh.
type fakeIdentity struct {
	refreshes atomic.Int32
	expiresIn int
	logouts   atomic.Int32
}

func (f *fakeIdentity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		var req authsdk.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "pw" {
			authsdk.ErrInvalidCredentials.WriteError(w, r)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
			AccessToken:  "a0",
			RefreshToken: "r0",
			TokenType:    authsdk.TokenTypeBearer,
			ExpiresIn:    f.expiresIn,
			Subject:      "u1",
			SessionID:    "s1",
		})
	case "/refresh":
		var req authsdk.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken == "spent" {
			authsdk.ErrRefreshReplayed.WriteError(w, r)
			return
		}
		n := f.refreshes.Add(1)
		httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
			AccessToken:  "a" + string(rune('0'+n)),
			RefreshToken: "r" + string(rune('0'+n)),
			ExpiresIn:    900,
			Subject:      req.Subject,
			SessionID:    req.SessionID,
		})
	case "/logout":
		if _, ok := httpx.BearerToken(r); !ok {
			authsdk.ErrMissingToken.WriteError(w, r)
			return
		}
		f.logouts.Add(1)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		authsdk.ErrNotFound.WriteError(w, r)
	}
}

func newClient(t *testing.T, f *fakeIdentity) *authsdk.SDKClient {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/")
}

func TestLogin(t *testing.T) {
	t.Parallel()
	client := newClient(t, &fakeIdentity{expiresIn: 900})

	t.Run("success", func(t *testing.T) {
		tokens, err := client.Login(context.Background(), authsdk.LoginRequest{Username: "alice", Password: "pw"})
		require.NoError(t, err)
		require.Equal(t, "a0", tokens.AccessToken)
		require.Equal(t, "s1", tokens.SessionID)
	})

	t.Run("failure is a typed error", func(t *testing.T) {
		_, err := client.Login(context.Background(), authsdk.LoginRequest{Username: "alice", Password: "nope"})
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "/login", apiErr.Path)
	})
}

func TestAPIErrorMatching(t *testing.T) {
	t.Parallel()

	err := error(authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeTokenRevoked, "custom"))
	require.ErrorIs(t, err, authsdk.ErrTokenRevoked)
	require.NotErrorIs(t, err, authsdk.ErrTokenExpired)
	require.False(t, errors.Is(errors.New("token_revoked"), authsdk.ErrTokenRevoked))
}

func TestWriteErrorSetsChallengeOn401(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	authsdk.ErrTokenExpired.WriteError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="token_expired"`)
	require.JSONEq(t, `{"status":401,"error":"token_expired","message":"token has expired","path":"/api/x"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	authsdk.ErrStoreUnavailable.WriteError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestNonJSONErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := authsdk.NewSDKClient(srv.URL).Validate(context.Background(), "tok")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
	require.Equal(t, "/validate", apiErr.Path)
}

func TestSession(t *testing.T) {
	t.Parallel()

	t.Run("fresh token is used as is", func(t *testing.T) {
		f := &fakeIdentity{expiresIn: 900}
		s, err := newClient(t, f).AuthenticateWithPassword(context.Background(), authsdk.LoginRequest{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		token, err := s.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "a0", token)
		require.Zero(t, f.refreshes.Load())
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		// expiresIn below the skew makes the first token due immediately.
		f := &fakeIdentity{expiresIn: 1}
		s, err := newClient(t, f).AuthenticateWithPassword(context.Background(), authsdk.LoginRequest{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		tokens := make([]string, 8)
		for i := range tokens {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tokens[i], _ = s.Token(context.Background())
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, f.refreshes.Load())
		for _, tok := range tokens {
			require.Equal(t, "a1", tok)
		}
		require.Equal(t, "r1", s.RefreshToken())
	})

	t.Run("replayed refresh ends the session", func(t *testing.T) {
		f := &fakeIdentity{}
		s := newClient(t, f).NewSessionFromTokens(authsdk.TokenResponse{
			AccessToken:  "a0",
			RefreshToken: "spent",
			Subject:      "u1",
			SessionID:    "s1",
		})

		err := s.Refresh(context.Background())
		require.ErrorIs(t, err, authsdk.ErrRefreshReplayed)

		_, err = s.Token(context.Background())
		require.ErrorIs(t, err, authsdk.ErrSessionEnded)
	})

	t.Run("logout ends the session", func(t *testing.T) {
		f := &fakeIdentity{expiresIn: 900}
		s, err := newClient(t, f).AuthenticateWithPassword(context.Background(), authsdk.LoginRequest{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		require.NoError(t, s.Logout(context.Background()))
		require.EqualValues(t, 1, f.logouts.Load())
		require.ErrorIs(t, s.Logout(context.Background()), authsdk.ErrSessionEnded)
	})
}
