// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Mode selects how inbound updates reach the process. Exactly one mode is
// active per process instance, decided at startup.
type Mode string

const (
	// ModePush means Telegram calls our webhook endpoint for each update.
	ModePush Mode = "push"
	// ModePull means we repeatedly long-poll Telegram for update batches.
	ModePull Mode = "pull"
)

// Config holds all application configuration.
type Config struct {
	Token         string
	PublicURL     string
	Port          string
	WebhookSecret string
	Mode          Mode
	PollTimeout   time.Duration
	ProbeWarmup   time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Load reads configuration from environment variables. The delivery mode
// is derived once from the presence of PUBLIC_URL: set means push
// (webhook), unset means pull (long poll).
func Load() (*Config, error) {
	cfg := &Config{
		Token:         getEnv("BOT_TOKEN", ""),
		PublicURL:     strings.TrimSuffix(getEnv("PUBLIC_URL", ""), "/"),
		Port:          getEnv("PORT", "8080"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		PollTimeout:   getEnvDuration("POLL_TIMEOUT", 30*time.Second),
		ProbeWarmup:   getEnvDuration("PROBE_WARMUP", 15*time.Second),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 5*time.Minute),
		ProbeTimeout:  getEnvDuration("PROBE_TIMEOUT", 10*time.Second),
	}

	if cfg.PublicURL != "" {
		cfg.Mode = ModePush
	} else {
		cfg.Mode = ModePull
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("BOT_TOKEN cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Mode == ModePush {
		if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
			return fmt.Errorf("PUBLIC_URL must be an http(s) URL")
		}
		if c.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SECRET is required in push mode")
		}
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("POLL_TIMEOUT must be > 0")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be > 0")
	}
	if c.ProbeTimeout <= 0 || c.ProbeTimeout >= c.ProbeInterval {
		return fmt.Errorf("PROBE_TIMEOUT must be > 0 and smaller than PROBE_INTERVAL")
	}
	return nil
}

// WebhookURL returns the externally reachable push endpoint.
func (c *Config) WebhookURL() string {
	return c.PublicURL + "/webhook"
}

// ProbeTarget returns the base URL the liveness probe should ping: the
// public address when one exists, otherwise the local listener.
func (c *Config) ProbeTarget() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://localhost:" + c.Port
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
