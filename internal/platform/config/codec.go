package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

// CodecConfig selects the token algorithm and where its key material lives.
// Secrets are read from files when the *_FILE variant is set, so they can be
// mounted rather than placed in the environment.
type CodecConfig struct {
	Algorithm      string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	Secret         string `env:"JWT_SECRET"`
	SecretFile     string `env:"JWT_SECRET_FILE"`
	PrivateKeyFile string `env:"JWT_PRIVATE_KEY_FILE"`
	PublicKeyFile  string `env:"JWT_PUBLIC_KEY_FILE"`
	KeyID          string `env:"JWT_KEY_ID"`
	Issuer         string `env:"JWT_ISSUER" envDefault:"tokengate"`
}

var ErrNoKeyMaterial = errors.New("config: no token key material configured")

// KeyConfig resolves files into a jwtx.KeyConfig.
func (c CodecConfig) KeyConfig() (jwtx.KeyConfig, error) {
	kc := jwtx.KeyConfig{
		Algorithm: c.Algorithm,
		Secret:    []byte(c.Secret),
		KeyID:     c.KeyID,
		Issuer:    c.Issuer,
	}

	var err error
	if c.SecretFile != "" {
		if kc.Secret, err = readTrimmed(c.SecretFile); err != nil {
			return kc, err
		}
	}
	if c.PrivateKeyFile != "" {
		if kc.PrivateKeyPEM, err = os.ReadFile(c.PrivateKeyFile); err != nil {
			return kc, fmt.Errorf("read private key: %w", err)
		}
	}
	if c.PublicKeyFile != "" {
		if kc.PublicKeyPEM, err = os.ReadFile(c.PublicKeyFile); err != nil {
			return kc, fmt.Errorf("read public key: %w", err)
		}
	}

	if len(kc.Secret) == 0 && len(kc.PrivateKeyPEM) == 0 && len(kc.PublicKeyPEM) == 0 {
		return kc, ErrNoKeyMaterial
	}
	return kc, nil
}

// Codec builds the token codec. When signer is true the codec must be able
// to issue tokens.
func (c CodecConfig) Codec(signer bool, opts ...jwtx.Option) (*jwtx.Codec, error) {
	kc, err := c.KeyConfig()
	if err != nil {
		return nil, err
	}

	codec, err := jwtx.New(kc, opts...)
	if err != nil {
		return nil, fmt.Errorf("build codec: %w", err)
	}
	if signer && !codec.CanSign() {
		return nil, jwtx.ErrNoSigningKey
	}
	return codec, nil
}

func readTrimmed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b, nil
}
