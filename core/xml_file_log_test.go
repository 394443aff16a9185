package core_test

import (
	"context"
	"elmah/codec"
	"elmah/core"
	"elmah/core/coretest"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXMLFileErrorLog_Contract(t *testing.T) {
	coretest.Run(t, func(t *testing.T) coretest.Factory {
		dir := t.TempDir()
		return func(app string) core.ErrorLog {
			log, err := core.NewXMLFileErrorLog(app, dir, nil)
			require.NoError(t, err)
			return log
		}
	})
}

func TestXMLFileErrorLog_RequiresPath(t *testing.T) {
	_, err := core.NewXMLFileErrorLog("Shop", " ", nil)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestXMLFileErrorLog_FileLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	log, err := core.NewXMLFileErrorLog("My/Shop", root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "My%2FShop"), log.Dir())

	at := time.Date(2024, 3, 1, 10, 0, 0, 123456700, time.UTC)
	id, err := log.Log(ctx, coretest.At(at, "boom"))
	require.NoError(t, err)

	names := readNames(t, log.Dir())
	require.Len(t, names, 1)
	assert.Equal(t, "error-2024-03-01100000.1234567Z-0000000000000001-"+id+".xml", names[0])

	data, err := os.ReadFile(filepath.Join(log.Dir(), names[0]))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
	e, err := codec.Decode(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, "My/Shop", e.ApplicationName())
}

func TestXMLFileErrorLog_RecoversSequence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := core.NewXMLFileErrorLog("", dir, nil)
	require.NoError(t, err)
	older, err := first.Log(ctx, coretest.At(at, "older"))
	require.NoError(t, err)

	reopened, err := core.NewXMLFileErrorLog("", dir, nil)
	require.NoError(t, err)
	newer, err := reopened.Log(ctx, coretest.At(at, "newer"))
	require.NoError(t, err)

	entries, total, err := reopened.GetErrors(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, newer, entries[0].ID())
	assert.Equal(t, older, entries[1].ID())
}

func TestXMLFileErrorLog_SkipsCorruptAndForeignFiles(t *testing.T) {
	ctx := context.Background()
	log, err := core.NewXMLFileErrorLog("Shop", t.TempDir(), nil)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	good, err := log.Log(ctx, coretest.At(at, "good"))
	require.NoError(t, err)

	corruptID := core.NewID()
	corrupt := "error-2024-03-01110000.0000000Z-0000000000000009-" + corruptID + ".xml"
	require.NoError(t, os.WriteFile(filepath.Join(log.Dir(), corrupt), []byte(`<error time="never"/>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(log.Dir(), "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(log.Dir(), ".error-123.tmp"), []byte("<err"), 0o644))

	entries, total, err := log.GetErrors(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 1)
	assert.Equal(t, good, entries[0].ID())

	_, err = log.GetError(ctx, corruptID)
	require.Error(t, err)
	var fe *codec.FormatError
	assert.True(t, errors.As(err, &fe), "expected decode error to propagate, got %v", err)
}

func TestXMLFileErrorLog_Purge(t *testing.T) {
	ctx := context.Background()
	log, err := core.NewXMLFileErrorLog("Shop", t.TempDir(), nil)
	require.NoError(t, err)

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = log.Log(ctx, coretest.At(cutoff.Add(-48*time.Hour), "old"))
	require.NoError(t, err)
	_, err = log.Log(ctx, coretest.At(cutoff.Add(-time.Second), "just old"))
	require.NoError(t, err)
	kept, err := log.Log(ctx, coretest.At(cutoff, "kept"))
	require.NoError(t, err)

	removed, err := log.Purge(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	entries, total, err := log.GetErrors(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, kept, entries[0].ID())
}

func readNames(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names
}
