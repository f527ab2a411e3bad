package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// MinSecretBytes is the smallest HS256 secret we accept (256 bits).
const MinSecretBytes = 32

// Supported signing algorithms, selected by configuration.
const (
	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
)

// ErrWeakSecret is returned for HS256 secrets shorter than MinSecretBytes.
var ErrWeakSecret = errors.New("jwtx: shared secret must be at least 32 bytes")

// parseEd25519Private loads an Ed25519 private key from PKCS8 PEM bytes.
func parseEd25519Private(pemKey []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (Ed25519 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not Ed25519 private key")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}

	return key, nil
}

// parseEd25519Public loads an Ed25519 public key from PKIX PEM bytes.
func parseEd25519Public(pemKey []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 public key")
	}

	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("jwtx: expected PUBLIC KEY, got %q", block.Type)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKIX: %w", err)
	}

	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: not Ed25519 public key")
	}

	return key, nil
}
