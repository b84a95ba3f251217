// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults applied when a variable is unset.
const (
	DefaultPort                 = 8080
	DefaultDatabaseURL          = "sqlite://yecs.db"
	DefaultScoringStrategy      = "model-fallback"
	DefaultModelTimeout         = 30 * time.Second
	DefaultTokenExpirationHours = 24
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "console"
)

// Config holds the service configuration.
type Config struct {
	Port            int
	GeminiAPIKey    string
	GeminiModel     string // overrides the standard-tier model when set
	DatabaseURL     string
	RedisURL        string
	ScoringStrategy string
	ModelTimeout    time.Duration
	LogLevel        string
	LogFormat       string
	Session         SessionConfig

	// GeneratedSecret is set when SECRET_KEY was missing and a random one was used.
	GeneratedSecret bool
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment take precedence.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("DATABASE_URL", DefaultDatabaseURL)
	v.SetDefault("SCORING_STRATEGY", DefaultScoringStrategy)
	v.SetDefault("MODEL_TIMEOUT", DefaultModelTimeout)
	v.SetDefault("TOKEN_EXPIRATION_HOURS", DefaultTokenExpirationHours)
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)
	v.SetDefault("LOG_FORMAT", DefaultLogFormat)

	cfg := &Config{
		Port:            v.GetInt("PORT"),
		GeminiAPIKey:    strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:     strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisURL:        v.GetString("REDIS_URL"),
		ScoringStrategy: v.GetString("SCORING_STRATEGY"),
		ModelTimeout:    v.GetDuration("MODEL_TIMEOUT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		Session: SessionConfig{
			Secret:          v.GetString("SECRET_KEY"),
			ExpirationHours: v.GetInt("TOKEN_EXPIRATION_HOURS"),
		},
	}

	if cfg.Session.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Session.Secret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL cannot be empty")
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive, got: %s", c.ModelTimeout)
	}
	return c.Session.normalize()
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// HasModel reports whether a generative model API key is configured.
func (c *Config) HasModel() bool {
	return c.GeminiAPIKey != ""
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
