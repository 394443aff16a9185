package config

import (
	"elmah/core"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elmah.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), writeConfig(t, "baseDir: /srv/app\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, filepath.Join("/srv/app", "App_Data"), cfg.DataDir)

	stores, err := cfg.StoreConfigs()
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, StoreMemory, stores[0].Type)
	assert.True(t, stores[0].SQLite.PragmasEnabled)
}

func TestLoad_FileAndApplications(t *testing.T) {
	path := writeConfig(t, `
baseDir: /srv/app
dataDir: /var/lib/elmah
store:
  type: SQLite
  applicationName: Shop
  connectionString: "|DataDirectory|/errors.db"
  sqlite:
    busyTimeoutMs: "250"
    pragmasEnabled: false
applications:
  - applicationName: Blog
  - applicationName: Wiki
    type: xmlfile
    logPath: ~/logs/wiki
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	stores, err := cfg.StoreConfigs()
	require.NoError(t, err)
	require.Len(t, stores, 3)

	shop := stores[0]
	assert.Equal(t, StoreSQLite, shop.Type)
	assert.Equal(t, filepath.Join("/var/lib/elmah", "errors.db"), shop.ConnectionString)
	assert.Equal(t, 250, shop.SQLite.BusyTimeoutMS)
	assert.False(t, shop.SQLite.PragmasEnabled)

	blog := stores[1]
	assert.Equal(t, "Blog", blog.ApplicationName)
	assert.Equal(t, StoreSQLite, blog.Type)
	assert.Equal(t, shop.ConnectionString, blog.ConnectionString)

	wiki := stores[2]
	assert.Equal(t, StoreXMLFile, wiki.Type)
	assert.Equal(t, filepath.Join("/srv/app", "logs", "wiki"), wiki.LogPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ELMAH_STORE_TYPE", "xmlfile")
	t.Setenv("ELMAH_STORE_LOGPATH", "/tmp/elmah")

	cfg, err := Load(viper.New(), writeConfig(t, "log:\n  format: json\n"))
	require.NoError(t, err)

	stores, err := cfg.StoreConfigs()
	require.NoError(t, err)
	assert.Equal(t, StoreXMLFile, stores[0].Type)
	assert.Equal(t, "/tmp/elmah", stores[0].LogPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"log format":        "log:\n  format: xml\n",
		"missing logPath":   "store:\n  type: xmlfile\n",
		"missing conn":      "store:\n  type: postgres\n",
		"long app name":     "store:\n  applicationName: " + strings.Repeat("a", 61) + "\n",
		"memory too big":    "store:\n  size: 501\n",
		"negative days":     "retention:\n  days: -1\n",
		"duplicate app":     "applications:\n  - size: 20\n",
		"unsupported store": "store:\n  type: oracle\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfiguration) || errors.Is(err, core.ErrUnsupportedStore), "got %v", err)
		})
	}
}

func TestStoreConfigs_RejectsSharedLogDirectory(t *testing.T) {
	body := "store:\n  type: xmlfile\n  logPath: /tmp/elmah\n  applicationName: Shop\n" +
		"applications:\n  - applicationName: shop\n"
	_, err := Load(viper.New(), writeConfig(t, body))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration), "got %v", err)
	assert.Contains(t, err.Error(), "share log directory")

	cfg := &Config{
		Store: map[string]interface{}{"type": "xmlfile", "logPath": "/tmp/elmah", "applicationName": "shop/eu"},
		Applications: []map[string]interface{}{
			{"applicationName": "shop_eu"},
			{"applicationName": "Café"},
			{"applicationName": "Caf_"},
		},
	}
	stores, err := cfg.StoreConfigs()
	require.NoError(t, err, "names that differ only in unsafe characters get distinct directories")
	assert.Len(t, stores, 4)
}

func TestDecodeStoreConfig_WeakTypes(t *testing.T) {
	cfg, err := DecodeStoreConfig(map[string]interface{}{
		"TYPE":            "Memory",
		"applicationname": "Shop",
		"size":            "40",
	})
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Type)
	assert.Equal(t, "Shop", cfg.ApplicationName)
	assert.Equal(t, 40, cfg.Size)
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		in, base, data, want string
	}{
		{"~/logs", "/srv/app", "/data", filepath.Join("/srv/app", "logs")},
		{"~/logs", "", "/data", "logs"},
		{"|DataDirectory|errors.db", "/srv/app", "/data", filepath.Join("/data", "errors.db")},
		{"file:|datadirectory|/errors.db", "", "/data", "file:" + filepath.Join("/data", "errors.db")},
		{"/abs/path", "/srv/app", "/data", "/abs/path"},
		{"", "/srv/app", "/data", ""},
	}
	for _, tt := range tests {
		if got := ResolvePath(tt.in, tt.base, tt.data); got != tt.want {
			t.Fatalf("ResolvePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig_YAML(t *testing.T) {
	cfg, err := Load(viper.New(), writeConfig(t, "baseDir: /srv/app\n"))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "addr:")
	assert.Contains(t, string(out), "127.0.0.1:8080")
	assert.Contains(t, string(out), "base_dir: /srv/app")
}
