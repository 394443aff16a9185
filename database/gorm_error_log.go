package database

import (
	"context"
	"elmah/codec"
	"elmah/core"
	"elmah/models"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormErrorLog stores errors in the ELMAH_Error table through gorm.
type GormErrorLog struct {
	app    string
	db     *gorm.DB
	logger *slog.Logger
	owned  bool
}

// NewGormErrorLog opens connectionString as a SQLite database.
func NewGormErrorLog(applicationName, connectionString string, opts SQLiteOptions, logger *slog.Logger) (*GormErrorLog, error) {
	if err := core.ValidateApplicationName(applicationName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(connectionString) == "" {
		return nil, fmt.Errorf("%w: connectionString is required for the SQLite error log", core.ErrConfiguration)
	}

	db, err := OpenSQLite(connectionString, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}

	l, err := NewGormErrorLogWithDB(applicationName, db, logger)
	if err != nil {
		CloseDB(db)
		return nil, err
	}
	l.owned = true
	return l, nil
}

// NewGormErrorLogWithDB uses an already migrated database. The caller keeps ownership of db.
func NewGormErrorLogWithDB(applicationName string, db *gorm.DB, logger *slog.Logger) (*GormErrorLog, error) {
	if err := core.ValidateApplicationName(applicationName); err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("%w: database is nil", core.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GormErrorLog{app: applicationName, db: db, logger: logger}, nil
}

func (l *GormErrorLog) Name() string            { return "SQLite Error Log" }
func (l *GormErrorLog) ApplicationName() string { return l.app }

// DB exposes the underlying handle.
func (l *GormErrorLog) DB() *gorm.DB { return l.db }

func (l *GormErrorLog) Log(ctx context.Context, e *models.Error) (string, error) {
	if e == nil {
		return "", core.ErrNilError
	}
	e = core.OwnedBy(e, l.app)

	allXML, err := codec.EncodeString(e)
	if err != nil {
		return "", core.NewStoreError(l.Name(), "log", err)
	}

	id := core.NewID()
	row := models.NewErrorRow(id, l.app, e, allXML)
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", core.NewStoreError(l.Name(), "log", err)
	}
	return id, nil
}

func (l *GormErrorLog) GetError(ctx context.Context, id string) (*models.ErrorLogEntry, error) {
	id, err := core.ParseID(id)
	if err != nil {
		return nil, err
	}

	var rows []models.ErrorRow
	err = l.db.WithContext(ctx).
		Where(map[string]interface{}{"Application": models.Truncate(l.app, models.ApplicationSize), "ErrorId": id}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, core.NewStoreError(l.Name(), "get", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	e, err := codec.DecodeString(rows[0].AllXML)
	if err != nil {
		return nil, core.NewStoreError(l.Name(), "get", err)
	}
	return models.NewErrorLogEntry(l, rows[0].ErrorID, e), nil
}

func (l *GormErrorLog) GetErrors(ctx context.Context, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error) {
	if err := core.ValidatePage(pageIndex, pageSize); err != nil {
		return nil, 0, err
	}

	scope := map[string]interface{}{"Application": models.Truncate(l.app, models.ApplicationSize)}
	var total int64
	var rows []models.ErrorRow

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ErrorRow{}).Where(scope).Count(&total).Error; err != nil {
			return err
		}

		offset, ok := core.PageOffset(pageIndex, pageSize)
		if pageSize == 0 || !ok || offset >= total {
			return nil
		}

		return tx.Where(scope).
			Order(clause.OrderBy{Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "TimeUtc"}, Desc: true},
				{Column: clause.Column{Name: "Sequence"}, Desc: true},
			}}).
			Limit(pageSize).
			Offset(int(offset)).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, core.NewStoreError(l.Name(), "list", err)
	}

	entries := make([]*models.ErrorLogEntry, 0, len(rows))
	for _, row := range rows {
		e, err := codec.DecodeString(row.AllXML)
		if err != nil {
			core.ReportCorrupt(l.logger, l.Name(), row.ErrorID, err)
			continue
		}
		entries = append(entries, models.NewErrorLogEntry(l, row.ErrorID, e))
	}
	return entries, int(total), nil
}

// Purge deletes this application's rows logged before cutoff.
func (l *GormErrorLog) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where(map[string]interface{}{"Application": models.Truncate(l.app, models.ApplicationSize)}).
		Where(clause.Lt{Column: clause.Column{Name: "TimeUtc"}, Value: cutoff.UTC()}).
		Delete(&models.ErrorRow{})
	if res.Error != nil {
		return 0, core.NewStoreError(l.Name(), "purge", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping reports whether the underlying database answers.
func (l *GormErrorLog) Ping(ctx context.Context) bool {
	sqlDB, err := l.db.DB()
	if err != nil {
		return false
	}
	return Ping(ctx, sqlDB)
}

// Close releases the database when the store opened it.
func (l *GormErrorLog) Close() error {
	if !l.owned {
		return nil
	}
	return CloseDB(l.db)
}
