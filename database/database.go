package database

import (
	"elmah/models"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite opens the SQLite database at dsn with gorm, applies pool settings
// and PRAGMAs, and migrates the error table.
func OpenSQLite(dsn string, opts SQLiteOptions, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(buildSQLiteDSN(dsn, opts)), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	applyPool(sqlDB, opts)

	// Connection URL parameters cover new connections; this covers an existing file
	// opened before the parameters were set.
	if opts.PragmasEnabled {
		if opts.BusyTimeoutMS > 0 {
			db.Exec("PRAGMA busy_timeout = ?", opts.BusyTimeoutMS)
		}
		if journalMode := normalizeSQLiteJournalMode(opts.JournalMode); journalMode != "" {
			db.Exec("PRAGMA journal_mode = " + journalMode)
		}
		if synchronous := normalizeSQLiteSynchronous(opts.Synchronous); synchronous != "" {
			db.Exec("PRAGMA synchronous = " + synchronous)
		}
		if opts.ForeignKeys {
			db.Exec("PRAGMA foreign_keys = ON")
		} else {
			db.Exec("PRAGMA foreign_keys = OFF")
		}
	}

	if err := db.AutoMigrate(&models.ErrorRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate error table: %w", err)
	}

	log.Debug("sqlite error database ready", "dsn", dsn)
	return db, nil
}

// CloseDB closes the connection pool behind db.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
