package database

import (
	"context"
	"database/sql"
	"elmah/codec"
	"elmah/core"
	"elmah/models"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	table = quote("ELMAH_Error")

	insertColumns = []string{"ErrorId", "Application", "Host", "Type", "Source", "Message", "User", "StatusCode", "TimeUtc", "AllXml"}
)

// SQLErrorLog stores errors through database/sql for SQLite (cgo driver) and PostgreSQL.
type SQLErrorLog struct {
	app     string
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger

	insertSQL string
	getSQL    string
	countSQL  string
	pageSQL   string
	purgeSQL  string
}

// NewSQLErrorLog connects to connectionString for storeType ("sqlite3" or "postgres")
// and creates the table when missing.
func NewSQLErrorLog(ctx context.Context, storeType, applicationName, connectionString string, opts SQLiteOptions, logger *slog.Logger) (*SQLErrorLog, error) {
	if err := core.ValidateApplicationName(applicationName); err != nil {
		return nil, err
	}
	d, ok := dialectFor(storeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedStore, storeType)
	}
	if strings.TrimSpace(connectionString) == "" {
		return nil, fmt.Errorf("%w: connectionString is required for the %s", core.ErrConfiguration, d.name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(d.driver, d.buildDSN(connectionString, opts))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrConfiguration, d.driver, err)
	}
	if d.sqliteLike {
		applyPool(db, opts)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect %s: %v", core.ErrConfiguration, d.driver, err)
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: create schema: %v", core.ErrConfiguration, err)
		}
	}

	l := newSQLErrorLog(applicationName, db, d, logger)
	logger.Debug("sql error log ready", "driver", d.driver, "application", applicationName)
	return l, nil
}

func newSQLErrorLog(app string, db *sql.DB, d dialect, logger *slog.Logger) *SQLErrorLog {
	quoted := make([]string, len(insertColumns))
	for i, c := range insertColumns {
		quoted[i] = quote(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertColumns)), ", ")

	return &SQLErrorLog{
		app:     app,
		db:      db,
		dialect: d,
		logger:  logger,

		insertSQL: d.bind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), placeholders)),
		getSQL: d.bind(fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? AND %s = ?",
			quote("ErrorId"), quote("AllXml"), table, quote("Application"), quote("ErrorId"))),
		countSQL: d.bind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, quote("Application"))),
		pageSQL: d.bind(fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? ORDER BY %s DESC, %s DESC LIMIT ? OFFSET ?",
			quote("ErrorId"), quote("AllXml"), table, quote("Application"), quote("TimeUtc"), quote("Sequence"))),
		purgeSQL: d.bind(fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s < ?",
			table, quote("Application"), quote("TimeUtc"))),
	}
}

func (l *SQLErrorLog) Name() string            { return l.dialect.name }
func (l *SQLErrorLog) ApplicationName() string { return l.app }

func (l *SQLErrorLog) scope() string {
	return models.Truncate(l.app, models.ApplicationSize)
}

func (l *SQLErrorLog) fail(op string, err error) error {
	if l.dialect.sqliteLike {
		recordSQLiteError(err)
	}
	return core.NewStoreError(l.Name(), op, err)
}

func (l *SQLErrorLog) Log(ctx context.Context, e *models.Error) (string, error) {
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
	_, err = l.db.ExecContext(ctx, l.insertSQL,
		row.ErrorID, row.Application, row.Host, row.Type, row.Source, row.Message, row.User,
		row.StatusCode, l.dialect.timeValue(row.TimeUtc), row.AllXML)
	if err != nil {
		return "", l.fail("log", err)
	}
	return id, nil
}

func (l *SQLErrorLog) GetError(ctx context.Context, id string) (*models.ErrorLogEntry, error) {
	id, err := core.ParseID(id)
	if err != nil {
		return nil, err
	}

	var storedID, allXML string
	err = l.db.QueryRowContext(ctx, l.getSQL, l.scope(), id).Scan(&storedID, &allXML)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, l.fail("get", err)
	}

	e, err := codec.DecodeString(allXML)
	if err != nil {
		return nil, core.NewStoreError(l.Name(), "get", err)
	}
	return models.NewErrorLogEntry(l, storedID, e), nil
}

type storedRow struct {
	id     string
	allXML string
}

func (l *SQLErrorLog) GetErrors(ctx context.Context, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error) {
	if err := core.ValidatePage(pageIndex, pageSize); err != nil {
		return nil, 0, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, l.fail("list", err)
	}
	defer tx.Rollback()

	var total int64
	if err := tx.QueryRowContext(ctx, l.countSQL, l.scope()).Scan(&total); err != nil {
		return nil, 0, l.fail("list", err)
	}

	offset, ok := core.PageOffset(pageIndex, pageSize)
	if pageSize == 0 || !ok || offset >= total {
		return []*models.ErrorLogEntry{}, int(total), tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, l.pageSQL, l.scope(), pageSize, offset)
	if err != nil {
		return nil, 0, l.fail("list", err)
	}
	var page []storedRow
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.id, &r.allXML); err != nil {
			rows.Close()
			return nil, 0, l.fail("list", err)
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, l.fail("list", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, 0, l.fail("list", err)
	}

	entries := make([]*models.ErrorLogEntry, 0, len(page))
	for _, r := range page {
		e, err := codec.DecodeString(r.allXML)
		if err != nil {
			core.ReportCorrupt(l.logger, l.Name(), r.id, err)
			continue
		}
		entries = append(entries, models.NewErrorLogEntry(l, r.id, e))
	}
	return entries, int(total), nil
}

// Purge deletes this application's rows logged before cutoff.
func (l *SQLErrorLog) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, l.purgeSQL, l.scope(), l.dialect.timeValue(cutoff))
	if err != nil {
		return 0, l.fail("purge", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database is reachable.
func (l *SQLErrorLog) Ping(ctx context.Context) bool {
	return Ping(ctx, l.db)
}

func (l *SQLErrorLog) Close() error {
	return l.db.Close()
}
