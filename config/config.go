package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ACCOUNTS"

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Debug           bool          `mapstructure:"debug"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

type AuthConfig struct {
	SigningKey           string        `mapstructure:"signing_key"`
	Issuer               string        `mapstructure:"issuer"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	VerificationTokenTTL time.Duration `mapstructure:"verification_token_ttl"`
	MaxLoginAttempts     int           `mapstructure:"max_login_attempts"`
	LockCooldown         time.Duration `mapstructure:"lock_cooldown"`
	BcryptCost           int           `mapstructure:"bcrypt_cost"`
	BootstrapAdmin       bool          `mapstructure:"bootstrap_admin"`
	DeterministicIDs     bool          `mapstructure:"deterministic_ids"`
}

type MailConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// AppConfig is the full configuration of the accounts server
type AppConfig struct {
	BaseURL  string         `mapstructure:"base_url"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Log      LogConfig      `mapstructure:"log"`
}

// Load reads .env files, then the YAML file at path (or ./config.yaml when
// path is empty), then ACCOUNTS_ prefixed environment overrides such as
// ACCOUNTS_AUTH_SIGNING_KEY.
func Load(path string, envFiles ...string) (*AppConfig, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := accounts.DefaultConfig()

	v.SetDefault("base_url", def.BaseURL)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", accounts.DriverSQLite)
	v.SetDefault("database.dsn", "file:accounts.db?cache=shared")
	v.SetDefault("database.migrate", true)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", def.Issuer)
	v.SetDefault("auth.access_token_ttl", def.AccessTokenTTL)
	v.SetDefault("auth.verification_token_ttl", def.VerificationTokenTTL)
	v.SetDefault("auth.max_login_attempts", def.MaxLoginAttempts)
	v.SetDefault("auth.lock_cooldown", def.LockCooldown)
	v.SetDefault("auth.bcrypt_cost", def.PasswordHashCost)
	v.SetDefault("auth.bootstrap_admin", true)
	v.SetDefault("auth.deterministic_ids", false)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@example.com")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate rejects configurations the server cannot start with
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("config: auth.signing_key is required")
	}
	if len(c.Auth.SigningKey) < 32 {
		return errors.New("config: auth.signing_key must be at least 32 bytes")
	}
	switch c.Mail.Driver {
	case "log", "smtp":
	default:
		return fmt.Errorf("config: unknown mail.driver %q", c.Mail.Driver)
	}
	return nil
}

// AccountsConfig builds the domain configuration
func (c AppConfig) AccountsConfig() accounts.Config {
	return accounts.Config{
		SigningKey:           c.Auth.SigningKey,
		Issuer:               c.Auth.Issuer,
		AccessTokenTTL:       c.Auth.AccessTokenTTL,
		VerificationTokenTTL: c.Auth.VerificationTokenTTL,
		MaxLoginAttempts:     c.Auth.MaxLoginAttempts,
		LockCooldown:         c.Auth.LockCooldown,
		PasswordHashCost:     c.Auth.BcryptCost,
		BaseURL:              c.BaseURL,
		DeterministicIDs:     c.Auth.DeterministicIDs,
		BootstrapAdmin:       c.Auth.BootstrapAdmin,
	}.WithDefaults()
}
