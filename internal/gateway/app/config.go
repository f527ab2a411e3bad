package app

import (
	"time"

	"github.com/aussiebroadwan/tokengate/internal/platform/config"
)

type Config struct {
	Log   config.LogConfig
	Codec config.CodecConfig
	Store config.StoreConfig

	Port int `env:"PORT" envDefault:"8080"`

	// Routes are "PREFIX=URL" with an optional ";strip".
	Routes []string `env:"GATEWAY_ROUTES" envSeparator:"," envDefault:"/api/auth=http://localhost:8081;strip,/api/members=http://localhost:8082"`

	// Logout is public so an expired access token can still end its session.
	PublicPaths []string `env:"GATEWAY_PUBLIC_PATHS" envSeparator:"," envDefault:"/public/,/api/auth/login,/api/auth/refresh,/api/auth/logout,/api/members/register,/api/members/activate"`

	UpstreamTimeout     time.Duration `env:"GATEWAY_UPSTREAM_TIMEOUT" envDefault:"30s"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	// Load balancers in front of the gateway allowed to set
	// X-Forwarded-For. Empty when the gateway is the edge.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
