package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/platform/config"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestParseEnvDefaults(t *testing.T) {
	var cfg struct {
		Log   config.LogConfig
		Codec config.CodecConfig
		Store config.StoreConfig
	}
	require.NoError(t, config.ParseEnv(&cfg))

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "HS256", cfg.Codec.Algorithm)
	require.Equal(t, config.StoreRedis, cfg.Store.Driver)
	require.Equal(t, 250*time.Millisecond, cfg.Store.AttemptTimeout)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORE_MAX_RETRIES", "5")
	t.Setenv("JWT_ISSUER", "issuer-x")

	var cfg struct {
		Codec config.CodecConfig
		Store config.StoreConfig
	}
	require.NoError(t, config.ParseEnv(&cfg))
	require.Equal(t, "memory", cfg.Store.Driver)
	require.EqualValues(t, 5, cfg.Store.RetryPolicy().MaxRetries)
	require.Equal(t, "issuer-x", cfg.Codec.Issuer)

	t.Setenv("STORE_MAX_RETRIES", "many")
	require.Error(t, config.ParseEnv(&cfg))
}

func TestCodecConfig(t *testing.T) {
	t.Run("inline secret", func(t *testing.T) {
		codec, err := config.CodecConfig{Secret: secret}.Codec(true)
		require.NoError(t, err)
		require.Equal(t, jwtx.AlgHS256, codec.Alg())
	})

	t.Run("secret file is trimmed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret")
		require.NoError(t, os.WriteFile(path, []byte(secret+"\n"), 0o600))

		kc, err := config.CodecConfig{SecretFile: path}.KeyConfig()
		require.NoError(t, err)
		require.Equal(t, []byte(secret), kc.Secret)
	})

	t.Run("no key material", func(t *testing.T) {
		_, err := config.CodecConfig{}.Codec(false)
		require.ErrorIs(t, err, config.ErrNoKeyMaterial)
	})

	t.Run("verify only eddsa cannot sign", func(t *testing.T) {
		priv, err := cryptox.GenerateEd25519Key()
		require.NoError(t, err)
		pub, err := cryptox.Ed25519PublicPEM(priv)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "pub.pem")
		require.NoError(t, os.WriteFile(path, pub, 0o600))

		cfg := config.CodecConfig{Algorithm: "EdDSA", PublicKeyFile: path}
		_, err = cfg.Codec(true)
		require.ErrorIs(t, err, jwtx.ErrNoSigningKey)

		codec, err := cfg.Codec(false)
		require.NoError(t, err)
		require.False(t, codec.CanSign())
	})
}

func TestStoreConfigOpen(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := config.StoreConfig{Driver: "memory"}.Open()
		require.NoError(t, err)
		require.NoError(t, s.Ping(context.Background()))
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "creds.db"),
		}.Open()
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Put(context.Background(), "k", "v", time.Minute))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := config.StoreConfig{Driver: "etcd"}.Open()
		require.Error(t, err)
	})
}
