package config

import (
	"elmah/core"
	"elmah/database"
	"fmt"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"
)

// Store type tags.
const (
	StoreMemory   = "memory"
	StoreXMLFile  = "xmlfile"
	StoreSQLite   = "sqlite"
	StoreSQLite3  = "sqlite3"
	StorePostgres = "postgres"
)

const dataDirectoryMacro = "|datadirectory|"

// StoreConfig selects and parameterises one error log.
type StoreConfig struct {
	Type             string                 `mapstructure:"type" yaml:"type"`
	ApplicationName  string                 `mapstructure:"applicationName" yaml:"application_name"`
	ConnectionString string                 `mapstructure:"connectionString" yaml:"connection_string,omitempty"`
	LogPath          string                 `mapstructure:"logPath" yaml:"log_path,omitempty"`
	Size             int                    `mapstructure:"size" yaml:"size,omitempty"`
	SQLite           database.SQLiteOptions `mapstructure:"sqlite" yaml:"sqlite"`
}

// DecodeStoreConfig decodes an ELMAH-style mapping. Keys match case-insensitively
// and scalar values are converted from strings where needed.
func DecodeStoreConfig(raw map[string]interface{}) (StoreConfig, error) {
	cfg := StoreConfig{SQLite: database.DefaultSQLiteOptions()}
	if raw == nil {
		return cfg, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return StoreConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return StoreConfig{}, fmt.Errorf("%w: decode store mapping: %v", core.ErrConfiguration, err)
	}
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	return cfg, nil
}

// StoreConfigs returns the default store followed by one per application entry,
// with placeholders resolved and every entry validated.
func (c *Config) StoreConfigs() ([]StoreConfig, error) {
	base, err := DecodeStoreConfig(c.Store)
	if err != nil {
		return nil, err
	}
	if base.Type == "" {
		base.Type = StoreMemory
	}

	configs := []StoreConfig{base}
	for i, raw := range c.Applications {
		app, err := DecodeStoreConfig(raw)
		if err != nil {
			return nil, fmt.Errorf("applications[%d]: %w", i, err)
		}
		if err := mergo.Merge(&app, base); err != nil {
			return nil, fmt.Errorf("applications[%d]: %w", i, err)
		}
		configs = append(configs, app)
	}

	seen := make(map[string]bool, len(configs))
	for i := range configs {
		configs[i].ConnectionString = ResolvePath(configs[i].ConnectionString, c.BaseDir, c.DataDir)
		configs[i].LogPath = ResolvePath(configs[i].LogPath, c.BaseDir, c.DataDir)
		if err := configs[i].Validate(); err != nil {
			return nil, err
		}
		if seen[configs[i].ApplicationName] {
			return nil, fmt.Errorf("%w: application %q configured twice", core.ErrConfiguration, configs[i].ApplicationName)
		}
		seen[configs[i].ApplicationName] = true
	}
	if err := CheckDistinctDirs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// CheckDistinctDirs rejects XML file stores that would share a directory,
// comparing case-insensitively for the benefit of Windows and macOS.
func CheckDistinctDirs(configs []StoreConfig) error {
	owners := make(map[string]string)
	for _, c := range configs {
		if c.Type != StoreXMLFile {
			continue
		}
		dir := core.XMLFileDir(c.LogPath, c.ApplicationName)
		key := strings.ToLower(filepath.Clean(dir))
		if other, dup := owners[key]; dup {
			return fmt.Errorf("%w: applications %q and %q share log directory %s", core.ErrConfiguration, other, c.ApplicationName, dir)
		}
		owners[key] = c.ApplicationName
	}
	return nil
}

// Validate checks the keys the selected store type requires.
func (s StoreConfig) Validate() error {
	if err := core.ValidateApplicationName(s.ApplicationName); err != nil {
		return err
	}
	switch s.Type {
	case StoreMemory:
		if s.Size < 0 || s.Size > core.MaxMemorySize {
			return fmt.Errorf("%w: memory size %d outside [0, %d]", core.ErrConfiguration, s.Size, core.MaxMemorySize)
		}
	case StoreXMLFile:
		if strings.TrimSpace(s.LogPath) == "" {
			return fmt.Errorf("%w: store %q requires logPath", core.ErrConfiguration, s.Type)
		}
	case StoreSQLite, StoreSQLite3, StorePostgres:
		if strings.TrimSpace(s.ConnectionString) == "" {
			return fmt.Errorf("%w: store %q requires connectionString", core.ErrConfiguration, s.Type)
		}
	default:
		return fmt.Errorf("%w: %q", core.ErrUnsupportedStore, s.Type)
	}
	return nil
}

// ResolvePath expands a leading "~/" against baseDir and |DataDirectory| against dataDir.
// An empty baseDir leaves the remainder relative.
func ResolvePath(path, baseDir, dataDir string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		path = filepath.Join(baseDir, filepath.FromSlash(path[2:]))
	}

	if idx := strings.Index(strings.ToLower(path), dataDirectoryMacro); idx >= 0 {
		rest := path[idx+len(dataDirectoryMacro):]
		rest = strings.TrimLeft(rest, `/\`)
		resolved := dataDir
		if rest != "" {
			resolved = filepath.Join(dataDir, filepath.FromSlash(rest))
		}
		path = path[:idx] + resolved
	}
	return path
}
