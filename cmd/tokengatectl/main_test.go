package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore/sqlitestore"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("IDENTITY_DATABASE_FILE", filepath.Join(dir, "identity.db"))
	t.Setenv("IDENTITY_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", filepath.Join(dir, "credentials.db"))
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	return dir
}

func TestUserCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "user", "add", "alice", "--role", "ADMIN")
	require.NoError(t, err)
	require.Contains(t, out, "created alice")
	require.Contains(t, out, "role=ADMIN")
	require.Contains(t, out, "password: ")

	_, err = run(t, "user", "add", "alice", "--password", "correct horse")
	require.Error(t, err)

	out, err = run(t, "user", "passwd", "alice", "--password", "battery staple")
	require.NoError(t, err)
	require.Contains(t, out, "password updated")

	out, err = run(t, "user", "enroll-totp", "alice")
	require.NoError(t, err)
	require.Contains(t, out, "otpauth://totp/")

	_, err = run(t, "user", "disable-totp", "alice")
	require.NoError(t, err)

	_, err = run(t, "user", "add")
	require.Error(t, err, "username is required")
}

func TestSessionRevokeAll(t *testing.T) {
	dir := setupEnv(t)

	st, err := sqlitestore.New("file:" + filepath.Join(dir, "credentials.db"))
	require.NoError(t, err)
	ctx := context.Background()
	for _, sid := range []string{"a", "b", "c"} {
		require.NoError(t, st.Put(ctx, "refresh_token:01J0ALICE:"+sid, "{}", time.Hour))
	}
	require.NoError(t, st.Close())

	out, err := run(t, "session", "revoke-all", "01J0ALICE")
	require.NoError(t, err)
	require.Contains(t, out, "revoked 3 sessions")
}

func TestSessionRevokeToken(t *testing.T) {
	setupEnv(t)

	codec, err := jwtx.New(jwtx.KeyConfig{Algorithm: jwtx.AlgHS256, Secret: []byte("0123456789abcdef0123456789abcdef"), Issuer: "tokengate"})
	require.NoError(t, err)
	tok, err := codec.Issue(jwtx.NewClaims("01J0ALICE", "phone", nil), time.Minute)
	require.NoError(t, err)

	out, err := run(t, "session", "revoke-token", tok)
	require.NoError(t, err)
	require.Contains(t, out, "token revoked")

	_, err = run(t, "session", "revoke-token", "garbage")
	require.Error(t, err)
}

func TestGenerateKeys(t *testing.T) {
	dir := setupEnv(t)
	priv := filepath.Join(dir, "signing.pem")
	pub := filepath.Join(dir, "verify.pem")

	_, err := run(t, "keys", "generate-eddsa", "--out", priv, "--pub", pub)
	require.NoError(t, err)

	privPEM, err := os.ReadFile(priv)
	require.NoError(t, err)
	pubPEM, err := os.ReadFile(pub)
	require.NoError(t, err)

	signer, err := jwtx.New(jwtx.KeyConfig{Algorithm: jwtx.AlgEdDSA, PrivateKeyPEM: privPEM})
	require.NoError(t, err)
	verifier, err := jwtx.New(jwtx.KeyConfig{Algorithm: jwtx.AlgEdDSA, PublicKeyPEM: pubPEM})
	require.NoError(t, err)

	tok, err := signer.Issue(jwtx.NewClaims("01J0ALICE", "phone", nil), time.Minute)
	require.NoError(t, err)
	_, err = verifier.Parse(tok)
	require.NoError(t, err)

	out, err := run(t, "keys", "generate-secret")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(strings.TrimSpace(out)), 43)
}
