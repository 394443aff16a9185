// Package coretest holds behaviour checks shared by every ErrorLog implementation.
package coretest

import (
	"context"
	"elmah/core"
	"elmah/models"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Factory returns a store for app. Stores returned by one Factory share a backend.
type Factory func(app string) core.ErrorLog

// Setup builds a fresh backend for one subtest.
type Setup func(t *testing.T) Factory

// At returns a record stamped at t.
func At(t time.Time, message string) *models.Error {
	qs := models.NewCollection()
	qs.Add("id", "42")
	qs.Add("id", "43")
	return models.NewError("", models.Fields{
		HostName:    "web-01",
		Type:        "*errors.errorString",
		Source:      "shop/cart",
		Message:     message,
		Detail:      "detail of " + message,
		User:        "alice",
		Time:        t,
		StatusCode:  500,
		QueryString: qs,
	})
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// Run exercises the ErrorLog contract against setup.
func Run(t *testing.T, setup Setup) {
	t.Run("OrderingTieBreak", func(t *testing.T) { testOrdering(t, setup(t)) })
	t.Run("PagingTotals", func(t *testing.T) { testPaging(t, setup(t)) })
	t.Run("CountOnly", func(t *testing.T) { testCountOnly(t, setup(t)) })
	t.Run("InvalidArguments", func(t *testing.T) { testInvalidArguments(t, setup(t)) })
	t.Run("Identity", func(t *testing.T) { testIdentity(t, setup(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, setup(t)) })
	t.Run("IsolationSimilarNames", func(t *testing.T) { testIsolationSimilarNames(t, setup(t)) })
	t.Run("ApplicationStamp", func(t *testing.T) { testApplicationStamp(t, setup(t)) })
	t.Run("ConcurrentLog", func(t *testing.T) { testConcurrentLog(t, setup(t)) })
}

func testOrdering(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	first, err := log.Log(ctx, At(base, "first"))
	require.NoError(t, err)
	second, err := log.Log(ctx, At(base, "second"))
	require.NoError(t, err)
	earlier, err := log.Log(ctx, At(base.Add(-time.Second), "earlier"))
	require.NoError(t, err)

	entries, total, err := log.GetErrors(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{second, first, earlier}, ids(entries))
	assert.Equal(t, "second", entries[0].Error().Message())
}

func testPaging(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	for i := 0; i < 7; i++ {
		_, err := log.Log(ctx, At(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("e%d", i)))
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for page, want := range []int{3, 3, 1, 0} {
		entries, total, err := log.GetErrors(ctx, page, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, total, "page %d", page)
		assert.Len(t, entries, want, "page %d", page)
		for _, e := range entries {
			assert.False(t, seen[e.ID()], "entry %s repeated", e.ID())
			seen[e.ID()] = true
		}
	}
	assert.Len(t, seen, 7)

	entries, _, err := log.GetErrors(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e6", entries[0].Error().Message())

	entries, total, err := log.GetErrors(ctx, 1<<30, 1<<30)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 7, total)
}

func testCountOnly(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	entries, total, err := log.GetErrors(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, total)

	for i := 0; i < 4; i++ {
		_, err := log.Log(ctx, At(base, "e"))
		require.NoError(t, err)
	}

	entries, total, err = log.GetErrors(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 4, total)
}

func testInvalidArguments(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	_, _, err := log.GetErrors(ctx, -1, 10)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "got %v", err)
	_, _, err = log.GetErrors(ctx, 0, -10)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "got %v", err)

	_, err = log.GetError(ctx, "not-a-guid")
	assert.True(t, errors.Is(err, core.ErrInvalidID), "got %v", err)

	_, err = log.Log(ctx, nil)
	assert.Error(t, err)
}

func testIdentity(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	record := At(base.Add(123456789*time.Nanosecond), "kept")
	assert.Equal(t, 123456700, record.Time().Nanosecond(), "record time not truncated to %s", models.TimeResolution)
	id, err := log.Log(ctx, record)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entry, err := log.GetError(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, id, entry.ID())
	assert.True(t, record.WithApplicationName("Shop").Equal(entry.Error()), "stored record differs")
	assert.Equal(t, log.Name(), entry.Log().Name())
	assert.Equal(t, []string{"42", "43"}, entry.Error().QueryString().Values("id"))

	compact := strings.ReplaceAll(id, "-", "")
	entry, err = log.GetError(ctx, strings.ToUpper(compact))
	require.NoError(t, err)
	require.NotNil(t, entry, "compact id form not resolved")
	assert.Equal(t, id, entry.ID())

	entry, err = log.GetError(ctx, core.NewID())
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, _, err := log.GetErrors(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID())
}

func testIsolation(t *testing.T, factory Factory) {
	ctx := context.Background()
	shop := factory("Shop")
	blog := factory("Blog")

	shopID, err := shop.Log(ctx, At(base, "shop"))
	require.NoError(t, err)
	_, err = blog.Log(ctx, At(base, "blog"))
	require.NoError(t, err)
	_, err = blog.Log(ctx, At(base, "blog again"))
	require.NoError(t, err)

	entries, total, err := shop.GetErrors(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{shopID}, ids(entries))

	_, total, err = blog.GetErrors(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	entry, err := blog.GetError(ctx, shopID)
	require.NoError(t, err)
	assert.Nil(t, entry, "entry leaked across applications")
}

// Names that differ only in characters a file system cannot hold must not share entries.
func testIsolationSimilarNames(t *testing.T, factory Factory) {
	ctx := context.Background()
	pairs := [][2]string{{"shop/eu", "shop_eu"}, {"Café", "Caf_"}, {"a:b", "a_b"}}

	for _, pair := range pairs {
		first, second := factory(pair[0]), factory(pair[1])

		id, err := first.Log(ctx, At(base, pair[0]))
		require.NoError(t, err)

		_, total, err := second.GetErrors(ctx, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, total, "%q sees entries of %q", pair[1], pair[0])

		entry, err := second.GetError(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, entry, "%q resolves an entry of %q", pair[1], pair[0])

		entry, err = first.GetError(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, pair[0], entry.Error().ApplicationName())
	}
}

func testApplicationStamp(t *testing.T, factory Factory) {
	ctx := context.Background()
	log := factory("Shop")

	unnamed, err := log.Log(ctx, At(base, "unnamed"))
	require.NoError(t, err)
	named, err := log.Log(ctx, At(base, "named").WithApplicationName("Legacy"))
	require.NoError(t, err)

	entry, err := log.GetError(ctx, unnamed)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Shop", entry.Error().ApplicationName())

	entry, err = log.GetError(ctx, named)
	require.NoError(t, err)
	require.NotNil(t, entry, "record naming another application must stay in this store")
	assert.Equal(t, "Legacy", entry.Error().ApplicationName())
}

func testConcurrentLog(t *testing.T, factory Factory) {
	const writers = 20
	ctx := context.Background()
	log := factory("Shop")

	var mu sync.Mutex
	logged := make(map[string]bool, writers)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			id, err := log.Log(ctx, At(base.Add(time.Duration(i%3)*time.Second), fmt.Sprintf("w%d", i)))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if logged[id] {
				return fmt.Errorf("duplicate id %s", id)
			}
			logged[id] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())

	entries, total, err := log.GetErrors(ctx, 0, writers)
	require.NoError(t, err)
	assert.Equal(t, writers, total)
	require.Len(t, entries, writers)
	for i, e := range entries {
		assert.True(t, logged[e.ID()])
		if i > 0 {
			assert.False(t, e.Error().Time().After(entries[i-1].Error().Time()), "entries out of order at %d", i)
		}
	}
}

func ids(entries []*models.ErrorLogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID()
	}
	return out
}
