package config

import "fmt"

// SessionConfig holds configuration for signing anonymous session tokens.
type SessionConfig struct {
	Secret          string
	ExpirationHours int
}

// normalize validates the configuration.
func (c *SessionConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("SECRET_KEY cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("TOKEN_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
