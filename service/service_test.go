package service

import (
	"bytes"
	"context"
	"elmah/config"
	"elmah/core"
	"elmah/database"
	"elmah/models"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(at time.Time, msg string) *models.Error {
	return models.NewError("", models.Fields{Message: msg, Type: "test", Time: at})
}

func testStores(t *testing.T) []config.StoreConfig {
	t.Helper()
	opts := database.DefaultSQLiteOptions()
	opts.ConnMaxIdleSec = 0
	dir := t.TempDir()
	return []config.StoreConfig{
		{Type: config.StoreMemory, ApplicationName: "Shop", Size: 50},
		{Type: config.StoreXMLFile, ApplicationName: "Blog", LogPath: filepath.Join(dir, "xml")},
		{Type: config.StoreSQLite, ApplicationName: "Wiki", ConnectionString: filepath.Join(dir, "errors.db"), SQLite: opts},
		{Type: config.StoreSQLite, ApplicationName: "Docs", ConnectionString: filepath.Join(dir, "errors.db"), SQLite: opts},
	}
}

func newTestService(t *testing.T) *ErrorService {
	t.Helper()
	f, err := NewFactory(testStores(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, f.OpenAll(context.Background()))
	return NewErrorService(f, nil)
}

func TestFactory_SelectsStoreByType(t *testing.T) {
	ctx := context.Background()
	f, err := NewFactory(testStores(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	want := map[string]string{
		"Shop": "In-Memory Error Log",
		"Blog": "XML File-Based Error Log",
		"Wiki": "SQLite Error Log",
		"Docs": "SQLite Error Log",
	}
	for app, name := range want {
		log, err := f.Get(ctx, app)
		require.NoError(t, err)
		assert.Equal(t, name, log.Name())
		assert.Equal(t, app, log.ApplicationName())

		again, err := f.Get(ctx, app)
		require.NoError(t, err)
		assert.Same(t, log, again, "factory should cache per application")
	}

	assert.Len(t, f.gormDBs, 1, "stores on one database share a connection")
	assert.Equal(t, "Shop", f.DefaultApplication())

	_, err = f.Get(ctx, "Nope")
	assert.True(t, errors.Is(err, ErrUnknownApplication))
}

func TestFactory_RejectsBadConfig(t *testing.T) {
	_, err := NewFactory(nil, nil)
	assert.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = NewFactory([]config.StoreConfig{{Type: "oracle"}}, nil)
	assert.True(t, errors.Is(err, core.ErrUnsupportedStore))

	_, err = NewFactory([]config.StoreConfig{{Type: config.StoreMemory}, {Type: config.StoreMemory}}, nil)
	assert.True(t, errors.Is(err, core.ErrConfiguration))

	dir := t.TempDir()
	_, err = NewFactory([]config.StoreConfig{
		{Type: config.StoreXMLFile, ApplicationName: "Shop", LogPath: dir},
		{Type: config.StoreXMLFile, ApplicationName: "SHOP", LogPath: dir},
	}, nil)
	assert.True(t, errors.Is(err, core.ErrConfiguration), "stores sharing a directory")
}

func TestErrorService_LogAndRead(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, app := range svc.Applications() {
		id, err := svc.Log(ctx, app, record(at, "boom in "+app))
		require.NoError(t, err, app)

		entry, err := svc.GetError(ctx, app, id)
		require.NoError(t, err, app)
		require.NotNil(t, entry, app)
		assert.Equal(t, app, entry.Error().ApplicationName())

		entries, total, err := svc.GetErrors(ctx, app, 0, 10)
		require.NoError(t, err, app)
		assert.Equal(t, 1, total, app)
		assert.Equal(t, id, entries[0].ID(), app)
	}

	_, total, err := svc.GetErrors(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "empty application selects the default store")
}

func TestErrorService_LogException(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	r := httptest.NewRequest("GET", "/cart?item=1&item=2", nil)
	r.Header.Set("User-Agent", "test-agent")
	id, err := svc.LogException(ctx, "Shop", errors.New("cart is empty"), r, func(f *models.Fields) {
		f.StatusCode = 404
	})
	require.NoError(t, err)

	entry, err := svc.GetError(ctx, "Shop", id)
	require.NoError(t, err)
	e := entry.Error()
	assert.Equal(t, "cart is empty", e.Message())
	assert.Equal(t, 404, e.StatusCode())
	assert.Equal(t, []string{"1", "2"}, e.QueryString().Values("item"))
	assert.Equal(t, "test-agent", e.ServerVariables().Get("HTTP_USER_AGENT"))
}

func TestErrorService_Export(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < exportPageSize+5; i++ {
		_, err := svc.Log(ctx, "Wiki", record(at.Add(time.Duration(i)*time.Second), "e"))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	n, err := svc.Export(ctx, "Wiki", &buf, "")
	require.NoError(t, err)
	assert.Equal(t, exportPageSize+5, n)
	assert.Equal(t, exportPageSize+6, strings.Count(buf.String(), "\n"))
}

func TestErrorService_Purge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, app := range svc.Applications() {
		_, err := svc.Log(ctx, app, record(cutoff.Add(-time.Hour), "old"))
		require.NoError(t, err)
		_, err = svc.Log(ctx, app, record(cutoff.Add(time.Hour), "new"))
		require.NoError(t, err)
	}

	_, err := svc.Purge(ctx, "Shop", cutoff)
	assert.True(t, errors.Is(err, ErrPurgeUnsupported))

	removed, err := svc.PurgeAll(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Blog": 1, "Wiki": 1, "Docs": 1}, removed)

	_, total, err := svc.GetErrors(ctx, "Shop", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestRetention(t *testing.T) {
	svc := newTestService(t)

	_, err := NewRetention(svc, 0, "0 3 * * *", nil)
	assert.Error(t, err)
	_, err = NewRetention(svc, 7, "not a cron", nil)
	assert.Error(t, err)

	r, err := NewRetention(svc, 7, "0 3 * * *", nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), r.Cutoff())

	ctx := context.Background()
	_, err = svc.Log(ctx, "Blog", record(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "stale"))
	require.NoError(t, err)
	removed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed["Blog"])
}

func TestErrorService_Health(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, map[string]bool{"Shop": true, "Blog": true, "Wiki": true, "Docs": true}, svc.Health(context.Background()))
}
