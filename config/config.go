// Package config loads authmanager settings from a file, the environment and
// defaults, in that order of precedence after explicit overrides.
package config

import (
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	authmanager "github.com/goliatone/go-authmanager"
)

// EnvPrefix prefixes every environment variable, e.g.
// AUTHMANAGER_DATABASE_DSN for database.dsn.
const EnvPrefix = "AUTHMANAGER"

const (
	KeyDatabaseDriver       = "database.driver"
	KeyDatabaseDSN          = "database.dsn"
	KeyDefaultGroup         = "auth.default_group"
	KeyBcryptCost           = "auth.bcrypt_cost"
	KeyAdminRole            = "auth.admin_role"
	KeySigningKey           = "token.signing_key"
	KeyIssuer               = "token.issuer"
	KeyAudience             = "token.audience"
	KeyTokenExpirationHours = "token.expiration_hours"
	KeyLogLevel             = "log.level"
	KeyLogDevelopment       = "log.development"
)

// Config wraps a viper instance with typed getters.
type Config struct {
	v *viper.Viper
}

// New returns a Config with defaults and environment binding applied.
func New() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDatabaseDriver, "sqlite")
	v.SetDefault(KeyDatabaseDSN, "file:authmanager.db?cache=shared")
	v.SetDefault(KeyDefaultGroup, authmanager.DefaultGroupName)
	v.SetDefault(KeyBcryptCost, 0)
	v.SetDefault(KeyAdminRole, authmanager.RoleAdministrator)
	v.SetDefault(KeyIssuer, "authmanager")
	v.SetDefault(KeyAudience, []string{})
	v.SetDefault(KeyTokenExpirationHours, 24)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDevelopment, false)

	return &Config{v: v}
}

// Load returns a Config read from path. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := New()
	if path == "" {
		return c, nil
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

// Set overrides key, taking precedence over file and environment.
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// Viper exposes the underlying instance, e.g. for flag binding.
func (c *Config) Viper() *viper.Viper { return c.v }

func (c *Config) GetDatabaseDriver() string { return c.v.GetString(KeyDatabaseDriver) }
func (c *Config) GetDatabaseDSN() string    { return c.v.GetString(KeyDatabaseDSN) }
func (c *Config) GetDefaultGroup() string   { return c.v.GetString(KeyDefaultGroup) }
func (c *Config) GetBcryptCost() int        { return c.v.GetInt(KeyBcryptCost) }
func (c *Config) GetAdminRole() string      { return c.v.GetString(KeyAdminRole) }
func (c *Config) GetSigningKey() string     { return c.v.GetString(KeySigningKey) }
func (c *Config) GetIssuer() string         { return c.v.GetString(KeyIssuer) }
func (c *Config) GetAudience() []string     { return c.v.GetStringSlice(KeyAudience) }

// GetTokenExpiration returns the token TTL.
func (c *Config) GetTokenExpiration() time.Duration {
	return time.Duration(c.v.GetInt(KeyTokenExpirationHours)) * time.Hour
}

// Validate reports settings that would fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	switch c.GetDatabaseDriver() {
	case "sqlite", "postgres":
	default:
		errs = append(errs, invalid("database.driver must be sqlite or postgres"))
	}
	if c.GetDatabaseDSN() == "" {
		errs = append(errs, invalid("database.dsn is required"))
	}
	if c.GetDefaultGroup() == "" {
		errs = append(errs, invalid("auth.default_group is required"))
	}
	if c.GetAdminRole() == "" {
		errs = append(errs, invalid("auth.admin_role is required"))
	}
	if c.v.GetInt(KeyTokenExpirationHours) < 0 {
		errs = append(errs, invalid("token.expiration_hours must not be negative"))
	}
	return errors.Join(errs...)
}

func invalid(msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation)
}

// Logger builds a zap logger from the log.* settings.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.v.GetBool(KeyLogDevelopment) {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// ManagerOptions returns the authmanager options these settings describe.
// The token service is only configured when a signing key is set.
func (c *Config) ManagerOptions(logger authmanager.Logger) []authmanager.ManagerOption {
	opts := []authmanager.ManagerOption{
		authmanager.WithLogger(logger),
		authmanager.WithDefaultGroup(c.GetDefaultGroup()),
		authmanager.WithAdminRole(c.GetAdminRole()),
		authmanager.WithPasswordHasher(authmanager.NewBcryptHasher(c.GetBcryptCost())),
	}
	if key := c.GetSigningKey(); key != "" {
		opts = append(opts, authmanager.WithTokenService(authmanager.NewTokenService(
			[]byte(key),
			c.GetTokenExpiration(),
			c.GetIssuer(),
			c.GetAudience(),
			logger,
		)))
	}
	return opts
}
