package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Iris Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// AppConfig contains deployment-wide application settings.
type AppConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication and credential settings.
//
// These three values are read once at startup and treated as immutable for
// the lifetime of the process. Production deployments must override all of
// them (see InsecureDefaultJWTSecret).
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
}

// JWTConfig contains access and invitation token settings.
type JWTConfig struct {
	// Secret signs all issued tokens. The shipped default is INSECURE and
	// exists only so a fresh checkout boots; set IRIS_JWT_SECRET in any
	// real deployment.
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the access token lifetime in minutes.
	// Default: 10080 (7 days).
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// InvitationTokenTTL is the invitation token lifetime in minutes.
	// Default: 10080 (7 days).
	InvitationTokenTTL int `yaml:"invitation_token_ttl"`
}

// PasswordConfig contains bcrypt hashing settings.
type PasswordConfig struct {
	// Cost is the bcrypt cost factor. The default of 10 is deliberately
	// lightweight for constrained deployments (LXC containers, small VMs);
	// raise it where CPU budget allows.
	Cost int `yaml:"cost"`
}

// InsecureDefaultJWTSecret is the signing secret used when none is
// configured. It is public by definition: any deployment still using it
// accepts that tokens can be forged. Unsafe for production.
const InsecureDefaultJWTSecret = "iris-dev-secret-change-in-production"

// Load reads configuration from a YAML file, applies environment variable
// overrides, and validates the result.
//
// Environment variables follow the pattern IRIS_SECTION_KEY, for example
// IRIS_DATABASE_PATH or IRIS_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "iris-core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/iris.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Secret:             InsecureDefaultJWTSecret,
				AccessTokenTTL:     10080,
				InvitationTokenTTL: 10080,
			},
			Password: PasswordConfig{
				Cost: 10,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IRIS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("IRIS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IRIS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("IRIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security: always override these three in production.
	if v := os.Getenv("IRIS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("IRIS_TOKEN_TTL_MINUTES"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Security.JWT.AccessTokenTTL = ttl
		}
	}
	if v := os.Getenv("IRIS_BCRYPT_COST"); v != "" {
		if cost, err := strconv.Atoi(v); err == nil {
			cfg.Security.Password.Cost = cost
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret must not be empty (set IRIS_JWT_SECRET)")
	}

	if c.Security.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl must be positive")
	}

	// bcrypt rejects costs outside [4,31]; catch it at startup rather than
	// on the first login.
	if c.Security.Password.Cost < 4 || c.Security.Password.Cost > 31 {
		errs = append(errs, "security.password.cost must be between 4 and 31")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// UsingInsecureSecret reports whether the deployment is still running on the
// shipped development signing secret.
func (c *Config) UsingInsecureSecret() bool {
	return c.Security.JWT.Secret == InsecureDefaultJWTSecret
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
