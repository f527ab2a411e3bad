package http_test

import (
	"os"
	"testing"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
)

func TestMain(m *testing.M) {
	cryptox.SetPepper("http-test-pepper")
	os.Exit(m.Run())
}
