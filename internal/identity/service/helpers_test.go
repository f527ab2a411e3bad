package service

import (
	"errors"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
)

func fingerprintOf(token string) string { return cryptox.FingerprintToken(token) }

func errorIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// flip returns s with every base64url character swapped for a different one.
func flip(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == 'A' {
			out[i] = 'B'
		} else {
			out[i] = 'A'
		}
	}
	return string(out)
}
