// Package config loads the server configuration from a YAML file with
// ${VAR} environment expansion, so secrets stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete delinked server configuration.
type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Store  Store  `yaml:"store"`
	Events Events `yaml:"events"`
}

// Server holds listen address configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Auth holds session token configuration.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`

	TokenTTL time.Duration `yaml:"-"`
	// Raw string value for YAML unmarshaling.
	TokenTTLRaw string `yaml:"token_ttl"`
}

// Store selects and configures the persistence backend.
type Store struct {
	// Driver is one of "memory", "redis", "sqlite".
	Driver     string `yaml:"driver"`
	RedisURL   string `yaml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Events configures the auth event bus.
type Events struct {
	// Driver is one of "none", "gochannel", "redisstream".
	Driver string `yaml:"driver"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a configuration file, expands ${VAR} references from the
// environment and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.finalize(); err != nil {
		// Defaults never fail to parse.
		panic(err)
	}
	return cfg
}

func (c *Config) finalize() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("DELINKED_JWT_SECRET")
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = "redis://localhost:6379/0"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "delinked.db"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "gochannel"
	}

	c.Auth.TokenTTL = 7 * 24 * time.Hour
	if c.Auth.TokenTTLRaw != "" {
		ttl, err := time.ParseDuration(c.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.token_ttl: %w", err)
		}
		c.Auth.TokenTTL = ttl
	}

	switch c.Store.Driver {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Events.Driver {
	case "none", "gochannel", "redisstream":
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}
	return nil
}
