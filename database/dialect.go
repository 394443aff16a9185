package database

import (
	"elmah/codec"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// dialect captures what differs between the database/sql backends.
type dialect struct {
	name       string
	driver     string
	schema     []string
	numbered   bool
	timeValue  func(time.Time) interface{}
	buildDSN   func(dsn string, opts SQLiteOptions) string
	sqliteLike bool
}

var sqlite3Dialect = dialect{
	name:   "SQLite3 Error Log",
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS "ELMAH_Error" (
			"Sequence"    INTEGER PRIMARY KEY AUTOINCREMENT,
			"ErrorId"     TEXT NOT NULL UNIQUE,
			"Application" TEXT NOT NULL,
			"Host"        TEXT NOT NULL,
			"Type"        TEXT NOT NULL,
			"Source"      TEXT NOT NULL,
			"Message"     TEXT NOT NULL,
			"User"        TEXT NOT NULL,
			"StatusCode"  INTEGER NOT NULL,
			"TimeUtc"     TEXT NOT NULL,
			"AllXml"      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "IX_ELMAH_Error_App_Time_Seq" ON "ELMAH_Error" ("Application", "TimeUtc" DESC, "Sequence" DESC)`,
	},
	// Fixed-width UTC text sorts the same as the instant it encodes.
	timeValue:  func(t time.Time) interface{} { return codec.FormatTime(t) },
	buildDSN:   buildSQLite3DSN,
	sqliteLike: true,
}

var postgresDialect = dialect{
	name:   "PostgreSQL Error Log",
	driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS "ELMAH_Error" (
			"Sequence"    BIGSERIAL PRIMARY KEY,
			"ErrorId"     VARCHAR(36) NOT NULL UNIQUE,
			"Application" VARCHAR(60) NOT NULL,
			"Host"        VARCHAR(50) NOT NULL,
			"Type"        VARCHAR(100) NOT NULL,
			"Source"      VARCHAR(60) NOT NULL,
			"Message"     VARCHAR(500) NOT NULL,
			"User"        VARCHAR(50) NOT NULL,
			"StatusCode"  INTEGER NOT NULL,
			"TimeUtc"     TIMESTAMPTZ NOT NULL,
			"AllXml"      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "IX_ELMAH_Error_App_Time_Seq" ON "ELMAH_Error" ("Application", "TimeUtc" DESC, "Sequence" DESC)`,
	},
	// TIMESTAMPTZ keeps microseconds; finer ties fall back to Sequence.
	numbered:  true,
	timeValue: func(t time.Time) interface{} { return t.UTC() },
	buildDSN:  func(dsn string, _ SQLiteOptions) string { return dsn },
}

func dialectFor(storeType string) (dialect, bool) {
	switch strings.ToLower(storeType) {
	case "sqlite3":
		return sqlite3Dialect, true
	case "postgres", "postgresql", "pgsql":
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}

// bind rewrites ? placeholders for drivers that number their parameters.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// quote quotes an identifier for either backend.
func quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}
