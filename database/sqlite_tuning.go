package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SQLiteOptions tunes SQLite connections for both SQLite-backed stores.
type SQLiteOptions struct {
	PragmasEnabled bool   `mapstructure:"pragmasEnabled" yaml:"pragmas_enabled"`
	BusyTimeoutMS  int    `mapstructure:"busyTimeoutMs" yaml:"busy_timeout_ms"`
	JournalMode    string `mapstructure:"journalMode" yaml:"journal_mode"`
	Synchronous    string `mapstructure:"synchronous" yaml:"synchronous"`
	ForeignKeys    bool   `mapstructure:"foreignKeys" yaml:"foreign_keys"`
	MaxOpenConns   int    `mapstructure:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxIdleSec int    `mapstructure:"connMaxIdleSeconds" yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int    `mapstructure:"connMaxLifetimeSeconds" yaml:"conn_max_lifetime_seconds"`
}

// DefaultSQLiteOptions favours a single writer with WAL journaling.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		PragmasEnabled: true,
		BusyTimeoutMS:  5000,
		JournalMode:    "WAL",
		Synchronous:    "NORMAL",
		ForeignKeys:    true,
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		ConnMaxIdleSec: 300,
		ConnMaxLifeSec: 0,
	}
}

type sqlitePoolConfig struct {
	maxOpenConns int
	maxIdleConns int
	maxIdleSec   int
	maxLifeSec   int
}

// sanitizeSQLitePoolConfig keeps at least one open connection, idle connections
// within [0, maxOpenConns] and non-negative durations.
func sanitizeSQLitePoolConfig(cfg sqlitePoolConfig) sqlitePoolConfig {
	if cfg.maxOpenConns < 1 {
		cfg.maxOpenConns = 1
	}
	if cfg.maxIdleConns < 0 {
		cfg.maxIdleConns = 0
	}
	if cfg.maxIdleConns > cfg.maxOpenConns {
		cfg.maxIdleConns = cfg.maxOpenConns
	}
	if cfg.maxIdleSec < 0 {
		cfg.maxIdleSec = 0
	}
	if cfg.maxLifeSec < 0 {
		cfg.maxLifeSec = 0
	}
	return cfg
}

func poolConfig(opts SQLiteOptions) sqlitePoolConfig {
	return sanitizeSQLitePoolConfig(sqlitePoolConfig{
		maxOpenConns: opts.MaxOpenConns,
		maxIdleConns: opts.MaxIdleConns,
		maxIdleSec:   opts.ConnMaxIdleSec,
		maxLifeSec:   opts.ConnMaxLifeSec,
	})
}

func applyPool(db *sql.DB, opts SQLiteOptions) {
	pool := poolConfig(opts)
	db.SetMaxIdleConns(pool.maxIdleConns)
	db.SetMaxOpenConns(pool.maxOpenConns)
	db.SetConnMaxIdleTime(time.Duration(pool.maxIdleSec) * time.Second)
	db.SetConnMaxLifetime(time.Duration(pool.maxLifeSec) * time.Second)
}

// buildSQLiteDSN appends `_pragma` parameters understood by the pure-Go driver,
// keeping any query already present on dbPath.
func buildSQLiteDSN(dbPath string, opts SQLiteOptions) string {
	base, rawQuery, _ := strings.Cut(dbPath, "?")
	query, _ := url.ParseQuery(rawQuery)

	if opts.PragmasEnabled {
		if opts.BusyTimeoutMS > 0 {
			query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeoutMS))
		}
		if journalMode := normalizeSQLiteJournalMode(opts.JournalMode); journalMode != "" {
			query.Add("_pragma", fmt.Sprintf("journal_mode(%s)", journalMode))
		}
		if synchronous := normalizeSQLiteSynchronous(opts.Synchronous); synchronous != "" {
			query.Add("_pragma", fmt.Sprintf("synchronous(%s)", synchronous))
		}
		if opts.ForeignKeys {
			query.Add("_pragma", "foreign_keys(1)")
		} else {
			query.Add("_pragma", "foreign_keys(0)")
		}
	}

	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// buildSQLite3DSN is buildSQLiteDSN for the cgo driver, which takes one
// underscore-prefixed parameter per setting.
func buildSQLite3DSN(dbPath string, opts SQLiteOptions) string {
	base, rawQuery, _ := strings.Cut(dbPath, "?")
	query, _ := url.ParseQuery(rawQuery)

	if opts.PragmasEnabled {
		if opts.BusyTimeoutMS > 0 {
			query.Set("_busy_timeout", strconv.Itoa(opts.BusyTimeoutMS))
		}
		if journalMode := normalizeSQLiteJournalMode(opts.JournalMode); journalMode != "" {
			query.Set("_journal_mode", journalMode)
		}
		if synchronous := normalizeSQLiteSynchronous(opts.Synchronous); synchronous != "" {
			query.Set("_synchronous", synchronous)
		}
		if opts.ForeignKeys {
			query.Set("_foreign_keys", "1")
		} else {
			query.Set("_foreign_keys", "0")
		}
	}

	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// normalizeSQLiteJournalMode returns the uppercase journal mode, or "" when value is not one SQLite accepts.
func normalizeSQLiteJournalMode(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF":
		return value
	default:
		return ""
	}
}

// normalizeSQLiteSynchronous returns the uppercase synchronous level, or "" when value is invalid.
func normalizeSQLiteSynchronous(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "OFF", "NORMAL", "FULL", "EXTRA":
		return value
	case "0", "1", "2", "3":
		return value
	default:
		return ""
	}
}
