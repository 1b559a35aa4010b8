package accounts

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the settings shared by the account components. Build it once
// and hand it to each constructor.
type Config struct {
	SigningKey           string
	Issuer               string
	AccessTokenTTL       time.Duration
	VerificationTokenTTL time.Duration
	MaxLoginAttempts     int
	LockCooldown         time.Duration
	PasswordHashCost     int
	BaseURL              string
	DeterministicIDs     bool
	// BootstrapAdmin makes the first registered account an active ADMIN
	BootstrapAdmin bool
}

// DefaultConfig returns the settings used when a field is left empty
func DefaultConfig() Config {
	return Config{
		Issuer:               "go-accounts",
		AccessTokenTTL:       30 * time.Minute,
		VerificationTokenTTL: 24 * time.Hour,
		MaxLoginAttempts:     5,
		LockCooldown:         24 * time.Hour,
		PasswordHashCost:     bcrypt.DefaultCost,
		BaseURL:              "http://localhost:8000",
	}
}

// WithDefaults fills zero values from DefaultConfig
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Issuer == "" {
		c.Issuer = def.Issuer
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = def.AccessTokenTTL
	}
	if c.VerificationTokenTTL <= 0 {
		c.VerificationTokenTTL = def.VerificationTokenTTL
	}
	if c.MaxLoginAttempts <= 0 {
		c.MaxLoginAttempts = def.MaxLoginAttempts
	}
	if c.LockCooldown <= 0 {
		c.LockCooldown = def.LockCooldown
	}
	if c.PasswordHashCost < bcrypt.MinCost || c.PasswordHashCost > bcrypt.MaxCost {
		c.PasswordHashCost = def.PasswordHashCost
	}
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	return c
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetAccessTokenTTL() time.Duration {
	return c.AccessTokenTTL
}

func (c Config) GetVerificationTokenTTL() time.Duration {
	return c.VerificationTokenTTL
}

func (c Config) GetMaxLoginAttempts() int {
	return c.MaxLoginAttempts
}

func (c Config) GetLockCooldown() time.Duration {
	return c.LockCooldown
}

func (c Config) GetBaseURL() string {
	return c.BaseURL
}
