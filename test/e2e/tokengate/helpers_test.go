package tokengate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gatewayapp "github.com/aussiebroadwan/tokengate/internal/gateway/app"
	identityapp "github.com/aussiebroadwan/tokengate/internal/identity/app"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Both services run in-process against one shared Redis, the way they are
 * deployed: the identity service behind the gateway's /api/auth prefix and a
 * stub members service behind /api/members that echoes the identity headers.
 */

const (
	jwtSecret     = "e2e-secret-0123456789abcdef012345"
	adminUsername = "admin"
	adminPassword = "Admin123!"

	// accessTTL is short so tests can wait out an access token.
	accessTTL = 3 * time.Second
)

type stack struct {
	gateway  string
	identity string

	// auth reaches the identity service through the gateway.
	auth *authsdk.SDKClient
	// edge calls protected gateway routes.
	edge *authsdk.SDKClient
	// direct reaches the identity service without the gateway.
	direct *authsdk.SDKClient
}

// setupRedisContainer starts Redis and returns its URL. The test is skipped
// when no container runtime is available.
func setupRedisContainer(t *testing.T) (string, func()) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForListeningPort("6379/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	redisURL := fmt.Sprintf("redis://%s:%s/0", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}
	return redisURL, cleanup
}

// setupMiniredis starts an in-memory Redis for runs without a container runtime.
func setupMiniredis(t *testing.T) string {
	t.Helper()
	mr := miniredis.RunT(t)
	return "redis://" + mr.Addr() + "/0"
}

// setupStack wires the identity service, the members stub and the gateway
// to the Redis at redisURL.
func setupStack(t *testing.T, redisURL string) *stack {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("STORE_REDIS_URL", redisURL)
	t.Setenv("JWT_SECRET", jwtSecret)
	t.Setenv("ACCESS_TOKEN_TTL", accessTTL.String())
	t.Setenv("IDENTITY_DATABASE_FILE", filepath.Join(dir, "identity.db"))
	t.Setenv("IDENTITY_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("BOOTSTRAP_USERNAME", adminUsername)
	t.Setenv("BOOTSTRAP_PASSWORD", adminPassword)

	identityCfg, err := identityapp.LoadConfig()
	require.NoError(t, err)
	identity, err := identityapp.New(identityCfg)
	require.NoError(t, err)
	t.Cleanup(identity.Close)

	identitySrv := httptest.NewServer(identity.Handler())
	t.Cleanup(identitySrv.Close)

	members := httptest.NewServer(http.HandlerFunc(echoIdentity))
	t.Cleanup(members.Close)

	t.Setenv("GATEWAY_ROUTES", fmt.Sprintf("/api/auth=%s;strip,/api/members=%s", identitySrv.URL, members.URL))

	gatewayCfg, err := gatewayapp.LoadConfig()
	require.NoError(t, err)
	gateway, err := gatewayapp.New(gatewayCfg)
	require.NoError(t, err)
	t.Cleanup(gateway.Close)

	gatewaySrv := httptest.NewServer(gateway.Handler())
	t.Cleanup(gatewaySrv.Close)

	return &stack{
		gateway:  gatewaySrv.URL,
		identity: identitySrv.URL,
		auth:     authsdk.NewSDKClient(gatewaySrv.URL + "/api/auth"),
		edge:     authsdk.NewSDKClient(gatewaySrv.URL),
		direct:   authsdk.NewSDKClient(identitySrv.URL),
	}
}

// memberView is what the members stub echoes back.
type memberView struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Path      string `json:"path"`
}

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, memberView{
		UserID:    r.Header.Get(httpx.HeaderUserID),
		SessionID: r.Header.Get(httpx.HeaderSessionID),
		Username:  r.Header.Get(httpx.HeaderUserName),
		Path:      r.URL.Path,
	})
}

// login authenticates the bootstrap admin on deviceID.
func login(t *testing.T, s *stack, deviceID string) *authsdk.TokenResponse {
	t.Helper()
	tokens, err := s.auth.Login(t.Context(), authsdk.LoginRequest{
		Username: adminUsername,
		Password: adminPassword,
		DeviceID: deviceID,
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
	return tokens
}

func refresh(t *testing.T, s *stack, tokens *authsdk.TokenResponse) (*authsdk.TokenResponse, error) {
	t.Helper()
	return s.auth.Refresh(t.Context(), authsdk.RefreshRequest{
		Subject:      tokens.Subject,
		SessionID:    tokens.SessionID,
		RefreshToken: tokens.RefreshToken,
	})
}

func assertTokenResponse(t *testing.T, tokens *authsdk.TokenResponse) {
	t.Helper()
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.NotEmpty(t, tokens.Subject)
	require.NotEmpty(t, tokens.SessionID)
	require.Equal(t, authsdk.TokenTypeBearer, tokens.TokenType)
	require.Equal(t, int(accessTTL.Seconds()), tokens.ExpiresIn)
}

// requireAdmitted calls a protected route and checks the identity headers
// the upstream received.
func requireAdmitted(t *testing.T, s *stack, accessToken string, tokens *authsdk.TokenResponse) {
	t.Helper()
	resp, err := s.edge.Get(t.Context(), "/api/members/profile", accessToken)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view memberView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, tokens.Subject, view.UserID)
	require.Equal(t, tokens.SessionID, view.SessionID)
	require.Equal(t, adminUsername, view.Username)
	require.Equal(t, "/api/members/profile", view.Path)
}

// requireRejected calls a protected route and checks the gateway's 401 body.
func requireRejected(t *testing.T, s *stack, accessToken, code string) {
	t.Helper()
	resp, err := s.edge.Get(t.Context(), "/api/members/profile", accessToken)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	var body authsdk.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, http.StatusUnauthorized, body.StatusCode)
	require.Equal(t, code, body.Code)
	require.NotEmpty(t, body.Message)
	require.Equal(t, "/api/members/profile", body.Path)
}

// waitPast sleeps until a token issued now with ttl has expired.
func waitPast(t *testing.T, ttl time.Duration) {
	t.Helper()
	// exp is rounded up to a whole second.
	time.Sleep(ttl + 1500*time.Millisecond)
}
