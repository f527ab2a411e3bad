package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrBadSignature = errors.New("jwtx: invalid signature")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")

	ErrNoSigningKey = errors.New("jwtx: codec has no signing key")
	ErrInvalidTTL   = errors.New("jwtx: ttl must be positive")
	ErrUnknownAlg   = errors.New("jwtx: unsupported algorithm")
)

// KeyConfig selects the algorithm and key material of a Codec.
//
// HS256 uses Secret for both signing and verification. EdDSA signs with
// PrivateKeyPEM (PKCS8) and verifies with its public half; a gateway that
// only verifies supplies PublicKeyPEM (PKIX) alone.
type KeyConfig struct {
	Algorithm     string
	Secret        []byte
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	KeyID         string
	Issuer        string
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for stamping and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec issues and parses access tokens. It is built once at startup and
// shared read-only by every request.
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	kid       string
	issuer    string
	now       func() time.Time
	parser    *jwt.Parser
}

// New builds a Codec from key configuration.
func New(cfg KeyConfig, opts ...Option) (*Codec, error) {
	c := &Codec{
		kid:    cfg.KeyID,
		issuer: cfg.Issuer,
		now:    time.Now,
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.Algorithm)) {
	case "", strings.ToUpper(AlgHS256):
		if len(cfg.Secret) < MinSecretBytes {
			return nil, ErrWeakSecret
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.Secret
		c.verifyKey = cfg.Secret

	case strings.ToUpper(AlgEdDSA):
		c.method = jwt.SigningMethodEdDSA
		switch {
		case len(cfg.PrivateKeyPEM) > 0:
			priv, err := parseEd25519Private(cfg.PrivateKeyPEM)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
			c.verifyKey = priv.Public()
		case len(cfg.PublicKeyPEM) > 0:
			pub, err := parseEd25519Public(cfg.PublicKeyPEM)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		default:
			return nil, errors.New("jwtx: EdDSA requires a private or public key")
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlg, cfg.Algorithm)
	}

	for _, opt := range opts {
		opt(c)
	}

	// Expiry is checked by Parse against the injected clock, so the library's
	// own wall clock validation is switched off.
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return c, nil
}

// Alg returns the JWS algorithm name.
func (c *Codec) Alg() string { return c.method.Alg() }

// CanSign reports whether the codec holds signing material.
func (c *Codec) CanSign() bool { return c.signKey != nil }

// Now returns the codec's current time.
func (c *Codec) Now() time.Time { return c.now() }

// Stamp fills in iat, exp, jti and iss for claims issued now with ttl.
func (c *Codec) Stamp(claims Claims, ttl time.Duration) Claims {
	out := claims.clone()
	now := c.now().UTC()

	out.IssuedAt = jwt.NewNumericDate(now)
	out.ExpiresAt = jwt.NewNumericDate(ceilSecond(now.Add(ttl)))
	out.ID = NewJTI()
	if c.issuer != "" {
		out.Issuer = c.issuer
	}
	return out
}

// ceilSecond rounds t up to a whole second. exp only has second precision
// and must not fall before issue time plus ttl.
func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); !down.Equal(t) {
		return down.Add(time.Second)
	}
	return t
}

// Sign encodes already-stamped claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	if c.signKey == nil {
		return "", ErrNoSigningKey
	}

	t := jwt.NewWithClaims(c.method, claims)
	if c.kid != "" {
		t.Header["kid"] = c.kid
	}
	return t.SignedString(c.signKey)
}

// Issue stamps claims with a lifetime of ttl and signs them.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if c.signKey == nil {
		return "", ErrNoSigningKey
	}
	return c.Sign(c.Stamp(claims, ttl))
}

// Parse verifies the signature of token and then its expiry.
//
// The outcomes are ErrMalformed, ErrBadSignature, ErrIssuer and ErrExpired.
// ErrExpired is only returned for correctly signed tokens, and the decoded
// claims are returned alongside it.
func (c *Codec) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.verifyKey, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing sub or exp", ErrMalformed)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrIssuer
	}

	if claims.ExpiredAt(c.now()) {
		return claims, ErrExpired
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
