// Package config resolves server settings from defaults, an optional YAML
// file, XAPI_* environment variables and command-line flags.
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

	"github.com/stevemurr/xapi-server/store"
)

// EnvPrefix prefixes every environment override, e.g. XAPI_PORT.
const EnvPrefix = "XAPI"

// Config holds every server setting.
type Config struct {
	Host               string        `yaml:"host" mapstructure:"host"`
	Port               int           `yaml:"port" mapstructure:"port"`
	StoreBackend       string        `yaml:"store_backend" mapstructure:"store_backend"`
	AllowedOrigins     []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SeedDir            string        `yaml:"seed_dir" mapstructure:"seed_dir"`
	RejectDuplicateIDs bool          `yaml:"reject_duplicate_ids" mapstructure:"reject_duplicate_ids"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ReadTimeout        time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	Log                LogConfig     `yaml:"log" mapstructure:"log"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8000,
		StoreBackend:    "memory",
		AllowedOrigins:  []string{"*"},
		MaxBodyBytes:    2 << 20,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Log:             LogConfig{Level: "info", Format: "text"},
	}
}

// Addr is the listen address built from Host and Port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"host":                 "host",
	"port":                 "port",
	"store-backend":        "store_backend",
	"seed-dir":             "seed_dir",
	"reject-duplicate-ids": "reject_duplicate_ids",
	"log-level":            "log.level",
	"log-format":           "log.format",
}

// Load resolves the configuration from defaults, an optional YAML file,
// XAPI_* environment variables and finally any flags that were set.
//
// With an empty path, xapi.yaml is looked up in the working directory and
// its absence is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("xapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("store_backend", d.StoreBackend)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("seed_dir", d.SeedDir)
	v.SetDefault("reject_duplicate_ids", d.RejectDuplicateIDs)
	v.SetDefault("max_body_bytes", d.MaxBodyBytes)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("idle_timeout", d.IdleTimeout)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	valid := false
	for _, b := range store.Backends {
		if c.StoreBackend == b {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("config: store_backend %q is invalid (must be one of %s)",
			c.StoreBackend, strings.Join(store.Backends, ", "))
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max_body_bytes must be positive")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid (must be debug, info, warn or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is invalid (must be text or json)", c.Log.Format)
	}
	for i, o := range c.AllowedOrigins {
		c.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	return nil
}
