package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/stun/v3"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "signing-secret", "password",
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	Port                int      `env:"PORT" envDefault:"3000"`
	AppEnv              string   `env:"APP_ENV" envDefault:"development"`
	LogLevel            string   `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty           bool     `env:"LOG_PRETTY" envDefault:"false"`
	ClientURL           string   `env:"CLIENT_URL"`
	DatabaseURL         string   `env:"DATABASE_URL"`
	RedisURL            string   `env:"REDIS_URL"`
	RateLimitBackend    string   `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	SigningSecret       string   `env:"SIGNING_SECRET"`
	RoomTokenTTLSeconds int      `env:"ROOM_TOKEN_TTL_SECONDS" envDefault:"900"`
	RoomTTLSeconds      int      `env:"ROOM_TTL_SECONDS" envDefault:"900"`
	STUNURIs            []string `env:"STUN_URIS" envSeparator:"," envDefault:"stun:stun.l.google.com:19302"`
	TURNURIs            []string `env:"TURN_URIS" envSeparator:","`
	TURNSecret          string   `env:"TURN_SECRET"`
	TURNTTLSeconds      int      `env:"TURN_TTL_SECONDS" envDefault:"120"`
	MirrorQueueSize     int      `env:"MIRROR_QUEUE_SIZE" envDefault:"1024"`
}

func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

func (c *Config) RoomTokenTTL() time.Duration {
	return time.Duration(c.RoomTokenTTLSeconds) * time.Second
}

func (c *Config) TURNTTL() time.Duration {
	return time.Duration(c.TURNTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigin is the CORS origin for browser clients. Outside production
// any origin is accepted.
func (c *Config) AllowedOrigin() string {
	if c.IsProduction() && c.ClientURL != "" {
		return c.ClientURL
	}
	return "*"
}

// TURNConfigured reports whether relay credentials can be issued.
func (c *Config) TURNConfigured() bool {
	return len(c.TURNURIs) > 0 && c.TURNSecret != ""
}

func (c *Config) Validate(isProduction bool) error {
	if c.RoomTTLSeconds <= 0 {
		return fmt.Errorf("ROOM_TTL_SECONDS must be positive")
	}
	if c.RoomTokenTTLSeconds <= 0 {
		return fmt.Errorf("ROOM_TOKEN_TTL_SECONDS must be positive")
	}
	if c.TURNTTLSeconds <= 0 {
		return fmt.Errorf("TURN_TTL_SECONDS must be positive")
	}

	switch c.RateLimitBackend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q", RateLimitBackendMemory, RateLimitBackendRedis)
	}

	for _, uri := range append(append([]string{}, c.STUNURIs...), c.TURNURIs...) {
		if _, err := stun.ParseURI(uri); err != nil {
			return fmt.Errorf("invalid ICE server uri %q: %w", uri, err)
		}
	}

	if c.SigningSecret != "" {
		if err := validateSecret("SIGNING_SECRET", c.SigningSecret, isProduction); err != nil {
			return err
		}
	}

	if len(c.TURNURIs) > 0 && c.TURNSecret == "" {
		log.Warn().Msg("TURN_URIS set without TURN_SECRET: relay servers will not be advertised")
	}

	if isProduction {
		if c.SigningSecret == "" {
			log.Warn().Msg("SIGNING_SECRET is empty in production: room tokens disabled, joins are not verified")
		}
		if c.ClientURL == "" {
			log.Warn().Msg("CLIENT_URL is empty in production: CORS allows any origin")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string, isProduction bool) error {
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret", name)
		}
	}
	if isProduction && len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
