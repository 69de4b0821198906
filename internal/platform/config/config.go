// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

Missing required values (signing keys, DSNs) fail here, at startup — never
mid-request.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Lucent identity server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for session and identity signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// TrustedDomains is the comma-separated SSO callback allow-list.
	// A callback host is accepted when it equals an entry or is a subdomain of one.
	TrustedDomains []string `env:"TRUSTED_DOMAINS" envSeparator:"," envDefault:"lucent.app"`

	// AppBaseURL is the public base URL embedded in verification/reset links.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"https://lucent.app"`

	// Outbound email (SMTP). Empty host selects the log-only dev sender.
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"no-reply@lucent.app"`

	// ExtraOrigins is a comma-separated list of exact origins allowed by
	// CORS in production in addition to the lucent.app family
	// (e.g. a partner console on its own domain).
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Normalize the allow-list once so the SSO broker can compare hosts directly.
	for i, domain := range cfg.TrustedDomains {
		cfg.TrustedDomains[i] = strings.ToLower(strings.TrimSpace(domain))
	}

	// Same treatment for the CORS origin allow-list.
	for i, origin := range cfg.ExtraOrigins {
		cfg.ExtraOrigins[i] = strings.ToLower(strings.TrimSpace(origin))
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedExtraOrigins returns the normalized CORS origin allow-list.
func (c *Config) AllowedExtraOrigins() []string {
	return c.ExtraOrigins
}
