package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/platform/health"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, h http.Handler) (int, authsdk.HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	return rec.Code, body
}

func TestLivez(t *testing.T) {
	code, body := serve(t, health.LivezHandler(time.Now().Add(-time.Minute), "v1.2.3"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v1.2.3", body.Version)
	require.NotEmpty(t, body.Uptime)
	require.Nil(t, body.Checks)
}

func TestReadyz(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("all healthy", func(t *testing.T) {
		code, body := serve(t, health.ReadyzHandler(time.Now(), "dev", map[string]health.Pinger{
			"database":  ok,
			"credstore": ok,
		}))
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "ok", body.Status)
		require.Equal(t, map[string]string{"database": "ok", "credstore": "ok"}, body.Checks)
	})

	t.Run("one failing", func(t *testing.T) {
		code, body := serve(t, health.ReadyzHandler(time.Now(), "dev", map[string]health.Pinger{
			"database":  ok,
			"credstore": down,
		}))
		require.Equal(t, http.StatusServiceUnavailable, code)
		require.Equal(t, "degraded", body.Status)
		require.Equal(t, "error", body.Checks["credstore"])
		require.Equal(t, "ok", body.Checks["database"])
	})

	t.Run("checks are bounded", func(t *testing.T) {
		var deadline bool
		probe := pingFunc(func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return nil
		})
		code, _ := serve(t, health.ReadyzHandler(time.Now(), "dev", map[string]health.Pinger{"x": probe}))
		require.Equal(t, http.StatusOK, code)
		require.True(t, deadline)
	})
}
