package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	// Server
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	StaticDir       string        `env:"STATIC_DIR" envDefault:"public"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// LogFile, when set, sends logs to a size-rotated file instead of stdout.
	LogFile string `env:"LOG_FILE"`

	// WebSocket
	// AllowedOrigins are host patterns allowed to open cross-origin sockets
	// and call the JSON API. Empty means same-origin only.
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxConns       int           `env:"MAX_CONNS" envDefault:"0"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"0s"`
	MaxFrameBytes  int64         `env:"MAX_FRAME_BYTES" envDefault:"16384"`

	// Profanity filter
	RedisAddr          string `env:"REDIS_ADDR"`
	ProfanityRedisKey  string `env:"PROFANITY_REDIS_KEY" envDefault:"chat:profanity:words"`
	ProfanityWordsFile string `env:"PROFANITY_WORDS_FILE"`
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, err
	}
	return cfg, nil
}
