package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, so server.port is
// read from KEYGATE_SERVER_PORT.
const EnvPrefix = "KEYGATE"

// YAMLConfig represents the top-level keygate configuration file.
type YAMLConfig struct {
	Server ServerConfig  `yaml:"server" mapstructure:"server"`
	Store  StoreConfig   `yaml:"store" mapstructure:"store"`
	Auth   AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Keys   KeysConfig    `yaml:"keys" mapstructure:"keys"`
	MCP    MCPConfig     `yaml:"mcp" mapstructure:"mcp"`
	Log    LoggingConfig `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	StaticDir       string     `yaml:"static_dir" mapstructure:"static_dir"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// StoreConfig selects and tunes the credential database.
type StoreConfig struct {
	Dialect         string `yaml:"dialect" mapstructure:"dialect"`
	DSN             string `yaml:"dsn" mapstructure:"dsn"`
	Timeout         string `yaml:"timeout" mapstructure:"timeout"`
	MaxOpenConns    int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnectRetries  uint64 `yaml:"connect_retries" mapstructure:"connect_retries"`
}

// AuthConfig controls admin session signing.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	BcryptCost int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// KeysConfig controls API key persistence.
type KeysConfig struct {
	PersistPlaintext bool `yaml:"persist_plaintext" mapstructure:"persist_plaintext"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport" mapstructure:"transport"`
	Port      int    `yaml:"port" mapstructure:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Store: StoreConfig{
			Dialect:         "sqlite",
			DSN:             "keygate.db",
			Timeout:         "5s",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "30m",
			ConnectRetries:  5,
		},
		Auth: AuthConfig{
			BcryptCost: 10,
		},
		Keys: KeysConfig{
			PersistPlaintext: true,
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
		Log: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Bind registers defaults and environment lookups on v. JWT_SECRET and PORT
// are honored as unprefixed aliases for auth.jwt_secret and server.port.
func Bind(v *viper.Viper) {
	d := DefaultYAMLConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)

	v.SetDefault("store.dialect", d.Store.Dialect)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	v.SetDefault("store.connect_retries", d.Store.ConnectRetries)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("keys.persist_plaintext", d.Keys.PersistPlaintext)

	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.port", d.MCP.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// First non-empty variable wins.
	v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET") //nolint:errcheck
	v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")               //nolint:errcheck
}

// FromViper decodes the effective configuration held by v and validates it.
func FromViper(v *viper.Viper) (*YAMLConfig, error) {
	var cfg YAMLConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields absent from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late, at first use.
func (c *YAMLConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	for key, val := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"store.timeout":           c.Store.Timeout,
		"store.conn_max_lifetime": c.Store.ConnMaxLifetime,
	} {
		if _, err := parseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ShutdownDuration returns server.shutdown_timeout as a duration.
func (s ServerConfig) ShutdownDuration() time.Duration {
	d, _ := parseDuration(s.ShutdownTimeout)
	return d
}

// TimeoutDuration returns store.timeout as a duration.
func (s StoreConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(s.Timeout)
	return d
}

// ConnMaxLifetimeDuration returns store.conn_max_lifetime as a duration.
func (s StoreConfig) ConnMaxLifetimeDuration() time.Duration {
	d, _ := parseDuration(s.ConnMaxLifetime)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Redacted returns a copy of c that is safe to print.
func (c YAMLConfig) Redacted() YAMLConfig {
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = "********"
	}
	c.Server.CORS.Origins = append([]string(nil), c.Server.CORS.Origins...)
	return c
}

// Marshal renders c as YAML.
func (c YAMLConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := DefaultYAMLConfig().Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
