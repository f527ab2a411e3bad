package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, tag("outer"), tag("inner"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"scheme is case insensitive", "bearer abc", "abc", true},
		{"surrounding space", "Bearer   abc  ", "abc", true},
		{"missing", "", "", false},
		{"wrong scheme", "Basic dXNlcjpwdw==", "", false},
		{"no token", "Bearer ", "", false},
		{"no separator", "Bearerabc", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			token, ok := httpx.BearerToken(req)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.token, token)
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	httpx.WriteError(rec, req, http.StatusUnauthorized, "token_revoked", "token has been revoked")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t,
		`{"status":401,"error":"token_revoked","message":"token has been revoked","path":"/api/orders"}`,
		rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	decode := func(raw string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"name":"x"}`)
	require.NoError(t, err)
	require.Equal(t, "x", b.Name)

	_, err = decode(``)
	require.ErrorIs(t, err, httpx.ErrEmptyBody)

	_, err = decode(`{"name":"x","extra":1}`)
	require.Error(t, err)

	_, err = decode(`{"name":"x"}{"name":"y"}`)
	require.Error(t, err)
}

func TestRequireIdentity(t *testing.T) {
	var got string
	h := httpx.RequireIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects without forwarded subject", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodPost, "/logout-all", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "missing_token")

		var body httpx.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "missing_token", body.Error)
		require.Equal(t, "/logout-all", body.Path)
	})

	t.Run("stores forwarded subject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout-all", nil)
		req.Header.Set(httpx.HeaderUserID, "user-7")
		rec := serve(h, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-7", got)
	})
}
