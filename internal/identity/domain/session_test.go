package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	k := domain.SessionKey{Subject: "01J9Z", SessionID: "phone"}
	require.NoError(t, k.Validate())
	require.Equal(t, "refresh_token:01J9Z:phone", k.String())

	prefix, err := domain.SubjectPrefix("01J9Z")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(k.String(), prefix))

	bad := []domain.SessionKey{
		{Subject: "", SessionID: "s"},
		{Subject: "u", SessionID: ""},
		{Subject: "u:x", SessionID: "s"},
		{Subject: "u", SessionID: "s*"},
		{Subject: "u?", SessionID: "s"},
		{Subject: "u", SessionID: "[s]"},
		{Subject: " u", SessionID: "s"},
		{Subject: strings.Repeat("u", domain.MaxKeyComponent+1), SessionID: "s"},
	}
	for _, k := range bad {
		require.ErrorIs(t, k.Validate(), domain.ErrInvalidSessionKey, "%+v", k)
	}

	_, err = domain.SubjectPrefix("*")
	require.ErrorIs(t, err, domain.ErrInvalidSessionKey)
}

func TestRenewalRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.RenewalRecord{
		Fingerprint: "fp",
		Subject:     "u1",
		SessionID:   "s1",
		Ext:         map[string]string{"role": "USER"},
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}

	enc, err := rec.Encode()
	require.NoError(t, err)
	require.NotContains(t, enc, "refreshToken")

	dec, err := domain.DecodeRenewalRecord(enc)
	require.NoError(t, err)
	require.Equal(t, rec.Fingerprint, dec.Fingerprint)
	require.Equal(t, rec.Ext, dec.Ext)
	require.True(t, rec.ExpiresAt.Equal(dec.ExpiresAt))
	require.Equal(t, domain.SessionKey{Subject: "u1", SessionID: "s1"}, dec.Key())

	require.False(t, rec.ExpiredAt(now.Add(time.Hour-time.Nanosecond)))
	require.True(t, rec.ExpiredAt(now.Add(time.Hour)))

	_, err = domain.DecodeRenewalRecord("{")
	require.Error(t, err)
}
