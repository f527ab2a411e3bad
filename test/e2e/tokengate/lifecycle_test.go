package tokengate_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// backends runs fn once against an in-memory Redis and once against a real
// Redis container when a container runtime is available.
func backends(t *testing.T, fn func(t *testing.T, s *stack)) {
	t.Run("miniredis", func(t *testing.T) {
		fn(t, setupStack(t, setupMiniredis(t)))
	})
	t.Run("redis", func(t *testing.T) {
		redisURL, cleanup := setupRedisContainer(t)
		defer cleanup()
		fn(t, setupStack(t, redisURL))
	})
}

// TestRefreshRotationAndReplay walks one session through its lifecycle:
// 1. Login and reach a protected route
// 2. Wait out the access token and get rejected as expired
// 3. Refresh, receiving a new pair
// 4. Replay the spent renewal token, which ends the session
// 5. The newest access token keeps working until it expires
func TestRefreshRotationAndReplay(t *testing.T) {
	backends(t, func(t *testing.T, s *stack) {
		first := login(t, s, "phone")
		requireAdmitted(t, s, first.AccessToken, first)
		t.Logf("Login successful, session %s", first.SessionID)

		waitPast(t, accessTTL)
		requireRejected(t, s, first.AccessToken, authsdk.ErrorCodeTokenExpired)
		t.Logf("Expired access token rejected")

		second, err := refresh(t, s, first)
		require.NoError(t, err)
		assertTokenResponse(t, second)
		require.NotEqual(t, first.AccessToken, second.AccessToken, "Access token should be rotated")
		require.NotEqual(t, first.RefreshToken, second.RefreshToken, "Refresh token should be rotated")
		require.Equal(t, first.SessionID, second.SessionID)
		requireAdmitted(t, s, second.AccessToken, second)
		t.Logf("Refresh successful, tokens rotated")

		_, err = refresh(t, s, first)
		require.ErrorIs(t, err, authsdk.ErrRefreshReplayed)
		t.Logf("Replayed refresh token rejected")

		_, err = refresh(t, s, second)
		require.ErrorIs(t, err, authsdk.ErrSessionNotFound, "replay should end the session")

		requireAdmitted(t, s, second.AccessToken, second)
		t.Logf("Rotated access token still admitted")
	})
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	backends(t, func(t *testing.T, s *stack) {
		tokens := login(t, s, "laptop")

		const callers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []*authsdk.TokenResponse
			errs    []error
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.auth.Refresh(t.Context(), authsdk.RefreshRequest{
					Subject:      tokens.Subject,
					SessionID:    tokens.SessionID,
					RefreshToken: tokens.RefreshToken,
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				winners = append(winners, resp)
			}()
		}
		wg.Wait()

		require.Len(t, winners, 1)
		require.Len(t, errs, callers-1)
		for _, err := range errs {
			require.True(t,
				errorIsAny(err, authsdk.ErrRefreshReplayed, authsdk.ErrSessionNotFound),
				"unexpected error: %v", err)
		}

		_, err := refresh(t, s, winners[0])
		require.ErrorIs(t, err, authsdk.ErrSessionNotFound, "losing a race should end the session")
	})
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	backends(t, func(t *testing.T, s *stack) {
		phone := login(t, s, "phone")
		laptop := login(t, s, "laptop")

		require.NoError(t, s.auth.Logout(t.Context(), phone.AccessToken))
		t.Logf("Logout successful")

		requireRejected(t, s, phone.AccessToken, authsdk.ErrorCodeTokenRevoked)

		_, err := refresh(t, s, phone)
		require.ErrorIs(t, err, authsdk.ErrSessionNotFound)

		v, err := s.direct.Validate(t.Context(), phone.AccessToken)
		require.NoError(t, err)
		require.False(t, v.Valid)
		require.Equal(t, authsdk.ErrorCodeTokenRevoked, v.Reason)

		// The other session is untouched.
		requireAdmitted(t, s, laptop.AccessToken, laptop)
		_, err = refresh(t, s, laptop)
		require.NoError(t, err)

		// Logging out twice is harmless.
		require.NoError(t, s.auth.Logout(t.Context(), phone.AccessToken))
	})
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	backends(t, func(t *testing.T, s *stack) {
		devices := []string{"phone", "laptop", "tablet"}
		sessions := make([]*authsdk.TokenResponse, 0, len(devices))
		for _, d := range devices {
			sessions = append(sessions, login(t, s, d))
		}

		resp, err := s.auth.LogoutAll(t.Context(), sessions[0].AccessToken)
		require.NoError(t, err)
		require.Equal(t, len(devices), resp.RevokedSessions)
		t.Logf("Logout-all revoked %d sessions", resp.RevokedSessions)

		for _, tokens := range sessions {
			_, err := refresh(t, s, tokens)
			require.ErrorIs(t, err, authsdk.ErrSessionNotFound)
		}
		requireRejected(t, s, sessions[0].AccessToken, authsdk.ErrorCodeTokenRevoked)
	})
}

func TestLogoutAllRequiresGateway(t *testing.T) {
	s := setupStack(t, setupMiniredis(t))
	tokens := login(t, s, "phone")

	// Called directly, the identity service has no gateway-resolved subject.
	_, err := s.direct.LogoutAll(t.Context(), tokens.AccessToken)
	require.ErrorIs(t, err, authsdk.ErrMissingToken)

	_, err = refresh(t, s, tokens)
	require.NoError(t, err)
}

func TestGatewayRejections(t *testing.T) {
	s := setupStack(t, setupMiniredis(t))

	t.Run("missing token", func(t *testing.T) {
		requireRejected(t, s, "", authsdk.ErrorCodeMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		requireRejected(t, s, "not-a-jwt", authsdk.ErrorCodeInvalidToken)
	})

	t.Run("validate is not open at the edge", func(t *testing.T) {
		_, err := s.auth.Validate(t.Context(), "not-a-jwt")
		require.ErrorIs(t, err, authsdk.ErrMissingToken)

		v, err := s.direct.Validate(t.Context(), "not-a-jwt")
		require.NoError(t, err)
		require.False(t, v.Valid)
		require.Equal(t, authsdk.ErrorCodeInvalidToken, v.Reason)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.auth.Login(t.Context(), authsdk.LoginRequest{Username: adminUsername, Password: "nope"})
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})
}

func errorIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
