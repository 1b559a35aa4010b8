package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-accounts/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
base_url: https://accounts.example.com
auth:
  signing_key: `+signingKey+`
  max_login_attempts: 3
  lock_cooldown: 1h
database:
  driver: postgres
  dsn: postgres://localhost/accounts
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://accounts.example.com", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, time.Hour, cfg.Auth.LockCooldown)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, "log", cfg.Mail.Driver)
	assert.True(t, cfg.Auth.BootstrapAdmin)

	domain := cfg.AccountsConfig()
	assert.Equal(t, signingKey, domain.SigningKey)
	assert.Equal(t, 3, domain.MaxLoginAttempts)
	assert.Equal(t, 30*time.Minute, domain.AccessTokenTTL)
	assert.True(t, domain.BootstrapAdmin)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "auth:\n  signing_key: "+signingKey+"\n")

	t.Setenv("ACCOUNTS_SERVER_ADDRESS", ":9090")
	t.Setenv("ACCOUNTS_AUTH_MAX_LOGIN_ATTEMPTS", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 7, cfg.Auth.MaxLoginAttempts)
}

func TestLoadDotEnvFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "mail:\n  driver: log\n")
	envFile := writeFile(t, "test.env", "ACCOUNTS_AUTH_SIGNING_KEY="+signingKey+"\n")
	t.Cleanup(func() { os.Unsetenv("ACCOUNTS_AUTH_SIGNING_KEY") })

	cfg, err := config.Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, signingKey, cfg.Auth.SigningKey)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "config.yaml", "base_url: http://x\n"))
		assert.ErrorContains(t, err, "signing_key is required")
	})

	t.Run("short signing key", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "config.yaml", "auth:\n  signing_key: short\n"))
		assert.ErrorContains(t, err, "at least 32 bytes")
	})

	t.Run("unknown mail driver", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "config.yaml", "auth:\n  signing_key: "+signingKey+"\nmail:\n  driver: pigeon\n"))
		assert.ErrorContains(t, err, "unknown mail.driver")
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
