package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/credstore"
)

const (
	// SessionKeyPrefix namespaces renewal records in the credential store.
	SessionKeyPrefix = "refresh_token:"

	// RevocationKeyPrefix namespaces revoked access token markers.
	RevocationKeyPrefix = "revoked:"

	// MaxKeyComponent bounds subject and session ids.
	MaxKeyComponent = 128
)

var ErrInvalidSessionKey = errors.New("domain: invalid session key")

// SessionKey addresses one device session of one subject.
type SessionKey struct {
	Subject   string
	SessionID string
}

// validComponent rejects values that would let a key escape its
// subject's prefix or act as a glob.
func validComponent(s string) bool {
	return s != "" &&
		len(s) <= MaxKeyComponent &&
		!strings.Contains(s, ":") &&
		!credstore.HasGlobMeta(s) &&
		strings.TrimSpace(s) == s
}

func (k SessionKey) Validate() error {
	if !validComponent(k.Subject) {
		return fmt.Errorf("%w: subject", ErrInvalidSessionKey)
	}
	if !validComponent(k.SessionID) {
		return fmt.Errorf("%w: session id", ErrInvalidSessionKey)
	}
	return nil
}

// String renders refresh_token:<subject>:<session>.
func (k SessionKey) String() string {
	return SessionKeyPrefix + k.Subject + ":" + k.SessionID
}

// SubjectPrefix is the deletion prefix covering every session of subject.
func SubjectPrefix(subject string) (string, error) {
	if !validComponent(subject) {
		return "", fmt.Errorf("%w: subject", ErrInvalidSessionKey)
	}
	return SessionKeyPrefix + subject + ":", nil
}

// RevocationKey is the marker key for an access token fingerprint.
func RevocationKey(fingerprint string) string {
	return RevocationKeyPrefix + fingerprint
}

// RenewalRecord is what the store keeps for a session. It holds the
// fingerprint of the current renewal token, never the token itself, and the
// claim extensions that renewal re-derives access tokens from.
type RenewalRecord struct {
	Fingerprint string            `json:"fp"`
	Subject     string            `json:"sub"`
	SessionID   string            `json:"sid"`
	Ext         map[string]string `json:"ext,omitempty"`
	IssuedAt    time.Time         `json:"iat"`
	ExpiresAt   time.Time         `json:"exp"`
}

// ExpiredAt reports whether the record's absolute lifetime has passed.
func (r RenewalRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Key returns the session key the record is stored under.
func (r RenewalRecord) Key() SessionKey {
	return SessionKey{Subject: r.Subject, SessionID: r.SessionID}
}

func (r RenewalRecord) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeRenewalRecord(s string) (RenewalRecord, error) {
	var r RenewalRecord
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return RenewalRecord{}, fmt.Errorf("decode renewal record: %w", err)
	}
	return r, nil
}
