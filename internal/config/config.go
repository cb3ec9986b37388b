// Package config holds the hub's environment-driven configuration, loaded
// once at startup and treated as immutable for the process lifetime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the hub.
type Config struct {
	// HTTP listener
	Port    string `env:"PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Fangi Hub"`

	// BaseURL is the externally visible base URL of the hub. It doubles as
	// the issuer claim on every signed token.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// AppSecret keys the storage hash and symmetric encryption. Minimum 16
	// bytes; the process refuses to start without it.
	AppSecret string `env:"APP_SECRET"`

	// SigningKeyPEM is the PKCS#1 RSA private key used to sign tokens. When
	// empty, an ephemeral key pair is generated at startup, which invalidates
	// outstanding tokens across restarts.
	SigningKeyPEM string `env:"SIGNING_KEY_PEM"`

	// Credential lifetimes
	AuthCodeTTL     time.Duration `env:"AUTH_CODE_TTL" envDefault:"10m"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	IDTokenTTL      time.Duration `env:"ID_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Environment controls request logging verbosity
	Environment string `env:"ENV" envDefault:"DEV"`
}

// Load reads configuration from environment variables. It first attempts to
// load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Addr returns the listener address in ":port" form.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Issuer is the value stamped into the iss claim of every signed token.
func (c *Config) Issuer() string {
	return strings.TrimSuffix(c.BaseURL, "/")
}

func (c *Config) validate() error {
	if c.AppSecret == "" {
		return fmt.Errorf("APP_SECRET is required")
	}
	if c.AuthCodeTTL <= 0 || c.AccessTokenTTL <= 0 || c.IDTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("credential TTLs must be positive")
	}
	return nil
}
