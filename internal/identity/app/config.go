package app

import (
	"time"

	"github.com/aussiebroadwan/tokengate/internal/platform/config"
)

type Config struct {
	Log   config.LogConfig
	Codec config.CodecConfig
	Store config.StoreConfig

	Port         int    `env:"PORT" envDefault:"8081"`
	DatabaseFile string `env:"IDENTITY_DATABASE_FILE" envDefault:"identity.db"`
	PepperFile   string `env:"IDENTITY_PEPPER_FILE" envDefault:"pepper"`
	TOTPIssuer   string `env:"TOTP_ISSUER" envDefault:"tokengate"`

	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Created as ADMIN when the user table is empty. A blank password is
	// generated and logged once.
	BootstrapUsername string `env:"BOOTSTRAP_USERNAME"`
	BootstrapPassword string `env:"BOOTSTRAP_PASSWORD"`

	// Peers allowed to set X-Forwarded-For. The service sits behind the
	// gateway, which is local by default.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:"," envDefault:"127.0.0.1/32,::1/128"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"10m"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
