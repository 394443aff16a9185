package database

import (
	"strings"
	"testing"
)

func TestBuildSQLiteDSN_PragmaParams(t *testing.T) {
	opts := SQLiteOptions{
		PragmasEnabled: true,
		BusyTimeoutMS:  5000,
		JournalMode:    "wal",
		Synchronous:    "NORMAL",
		ForeignKeys:    true,
	}

	dsn := buildSQLiteDSN("test.db", opts)
	if dsn == "test.db" {
		t.Fatalf("expected DSN to include pragma params, got %q", dsn)
	}
	if want := "_pragma=busy_timeout%285000%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if want := "_pragma=journal_mode%28WAL%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if want := "_pragma=synchronous%28NORMAL%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
	if want := "_pragma=foreign_keys%281%29"; !strings.Contains(dsn, want) {
		t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
	}
}

func TestBuildSQLiteDSN_PreservesExistingQuery(t *testing.T) {
	opts := SQLiteOptions{
		PragmasEnabled: true,
		ForeignKeys:    true,
	}
	dsn := buildSQLiteDSN("test.db?cache=shared", opts)
	if !strings.Contains(dsn, "cache=shared") {
		t.Fatalf("expected existing query to be preserved, got %q", dsn)
	}
	if !strings.Contains(dsn, "_pragma=") {
		t.Fatalf("expected pragma params, got %q", dsn)
	}
}

func TestBuildSQLiteDSN_Disabled(t *testing.T) {
	if dsn := buildSQLiteDSN("errors.db", SQLiteOptions{}); dsn != "errors.db" {
		t.Fatalf("expected bare path, got %q", dsn)
	}
}

func TestBuildSQLite3DSN(t *testing.T) {
	opts := DefaultSQLiteOptions()
	opts.JournalMode = "bogus"

	dsn := buildSQLite3DSN("file:errors.db?mode=rwc", opts)
	for _, want := range []string{"mode=rwc", "_busy_timeout=5000", "_synchronous=NORMAL", "_foreign_keys=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected DSN to contain %q, got %q", want, dsn)
		}
	}
	if strings.Contains(dsn, "_journal_mode") {
		t.Fatalf("invalid journal mode should be dropped, got %q", dsn)
	}
}

func TestSanitizeSQLitePoolConfig(t *testing.T) {
	got := sanitizeSQLitePoolConfig(sqlitePoolConfig{maxOpenConns: 0, maxIdleConns: 5, maxIdleSec: -1, maxLifeSec: -1})
	want := sqlitePoolConfig{maxOpenConns: 1, maxIdleConns: 1, maxIdleSec: 0, maxLifeSec: 0}
	if got != want {
		t.Fatalf("sanitizeSQLitePoolConfig = %+v, want %+v", got, want)
	}
}

func TestNormalizeSQLiteSynchronous(t *testing.T) {
	for in, want := range map[string]string{" full ": "FULL", "2": "2", "sometimes": ""} {
		if got := normalizeSQLiteSynchronous(in); got != want {
			t.Fatalf("normalizeSQLiteSynchronous(%q) = %q, want %q", in, got, want)
		}
	}
}
