package config

import (
	"elmah/core"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`

	// BaseDir replaces a leading "~/" in paths; DataDir replaces |DataDirectory|.
	BaseDir string `mapstructure:"baseDir" yaml:"base_dir"`
	DataDir string `mapstructure:"dataDir" yaml:"data_dir"`

	// Store is the default store mapping in ELMAH key style (type, applicationName,
	// connectionString, logPath, size, sqlite).
	Store map[string]interface{} `mapstructure:"store" yaml:"store"`

	// Applications lists extra stores. Keys they leave out come from Store.
	Applications []map[string]interface{} `mapstructure:"applications" yaml:"applications,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" yaml:"addr"`
	BaseURL     string   `mapstructure:"baseUrl" yaml:"base_url,omitempty"`
	CORSOrigins []string `mapstructure:"corsOrigins" yaml:"cors_origins,omitempty"`
	Metrics     bool     `mapstructure:"metrics" yaml:"metrics"`
}

type RetentionConfig struct {
	// Days of history to keep. Zero disables purging.
	Days     int    `mapstructure:"days" yaml:"days"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.metrics", true)
	v.SetDefault("retention.days", 0)
	v.SetDefault("retention.schedule", "0 3 * * *")
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.applicationName", "")
	v.SetDefault("store.connectionString", "")
	v.SetDefault("store.logPath", "")
	v.SetDefault("store.size", 0)
}

// Load reads configuration from file (optional), ELMAH_* environment variables
// and flags already bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("ELMAH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("elmah")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.fillDirs()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillDirs defaults BaseDir to the executable's directory and DataDir to BaseDir/App_Data.
// When the executable cannot be located BaseDir stays empty.
func (c *Config) fillDirs() {
	if c.BaseDir == "" {
		if exe, err := os.Executable(); err == nil {
			c.BaseDir = filepath.Dir(exe)
		}
	}
	if c.DataDir == "" && c.BaseDir != "" {
		c.DataDir = filepath.Join(c.BaseDir, "App_Data")
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "dev":
	default:
		return fmt.Errorf("%w: unknown log format %q", core.ErrConfiguration, c.Log.Format)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is empty", core.ErrConfiguration)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("%w: retention.days must not be negative", core.ErrConfiguration)
	}
	_, err := c.StoreConfigs()
	return err
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
