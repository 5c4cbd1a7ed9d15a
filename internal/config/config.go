// Package config loads server settings from an optional YAML file,
// CONDUIT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Session storage strategies
const (
	StoreCookie   = "cookie"
	StoreDatabase = "database"
	StoreRedis    = "redis"
)

// DevSessionSecret signs cookies outside production when none is configured
const DevSessionSecret = "s3cr3t"

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	Store      string        `mapstructure:"store"`
	CookieName string        `mapstructure:"cookie_name"`
	Secrets    []string      `mapstructure:"secrets"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	LoginWindow      time.Duration `mapstructure:"login_window"`
}

type OIDCConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AppConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// Config is built once at startup and passed to every component
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Session     SessionConfig  `mapstructure:"session"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Auth        AuthConfig     `mapstructure:"auth"`
	OIDC        OIDCConfig     `mapstructure:"oidc"`
	Log         LogConfig      `mapstructure:"log"`
	App         AppConfig      `mapstructure:"app"`
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ListenAddr returns the host:port the HTTP server binds to
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("database.path", "./conduit.db")
	v.SetDefault("session.store", StoreCookie)
	v.SetDefault("session.cookie_name", "real_world_remix_session")
	v.SetDefault("session.secrets", []string{})
	v.SetDefault("session.max_age", 7*24*time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_max_attempts", 5)
	v.SetDefault("auth.login_window", 15*time.Minute)
	v.SetDefault("oidc.enabled", false)
	v.SetDefault("oidc.issuer_url", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_url", "")
	v.SetDefault("oidc.scopes", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("app.page_size", 10)
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"env":           "environment",
	"addr":          "server.address",
	"port":          "server.port",
	"db":            "database.path",
	"session-store": "session.store",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// RegisterFlags adds the server flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", "development", "environment (development or production)")
	fs.String("addr", "", "address to listen on")
	fs.Int("port", 8080, "port to listen on")
	fs.String("db", "./conduit.db", "path to the SQLite database")
	fs.String("session-store", StoreCookie, "session storage: cookie, database or redis")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
}

// Load reads the configuration. path may be empty, in which case
// ./config.yaml is used if present. fs may be nil; otherwise flags set on
// it take precedence over every other source.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" && fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// Environment overrides, e.g. CONDUIT_SERVER_PORT=9000
	v.SetEnvPrefix("CONDUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(c.Session.Secrets) == 0 && !c.IsProduction() {
		c.Session.Secrets = []string{DevSessionSecret}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	switch c.Session.Store {
	case StoreCookie, StoreDatabase, StoreRedis:
	default:
		return fmt.Errorf("session.store: unknown store %q", c.Session.Store)
	}
	if len(c.Session.Secrets) == 0 {
		return errors.New("session.secrets: at least one secret is required in production")
	}
	for _, s := range c.Session.Secrets {
		if s == "" {
			return errors.New("session.secrets: secrets must not be empty")
		}
	}
	if c.IsProduction() && c.Session.Secrets[0] == DevSessionSecret {
		return errors.New("session.secrets: the development secret cannot be used in production")
	}
	if c.Session.MaxAge <= 0 {
		return errors.New("session.max_age: must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path: required")
	}
	if c.App.PageSize <= 0 {
		return errors.New("app.page_size: must be positive")
	}
	if c.Auth.LoginMaxAttempts <= 0 || c.Auth.LoginWindow <= 0 {
		return errors.New("auth: login_max_attempts and login_window must be positive")
	}
	if c.OIDC.Enabled && (c.OIDC.IssuerURL == "" || c.OIDC.ClientID == "") {
		return errors.New("oidc: issuer_url and client_id are required when enabled")
	}
	return nil
}
