package config

import (
	"log/slog"

	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// LogConfig configures pkg/slogx.
type LogConfig struct {
	Env    string `env:"ENV" envDefault:"dev"`
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Logger builds and installs the process logger.
func (c LogConfig) Logger(service, version string) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: service,
		Version: version,
		Env:     c.Env,
		Level:   c.Level,
		Format:  c.Format,
	})
}
