package cache

import (
	"context"
	"path/filepath"
	"raceresults/internal/components/chrono"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) Store {
	t.Helper()
	store, err := Open(":memory:", chrono.FixedImpl{At: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	_, found, err := store.Get(ctx, "irm-erkner703-2023", KindProfiles, "")
	require.NoError(t, err)
	require.False(t, found)

	err = store.Put(ctx, "irm-erkner703-2023", KindProfiles, "", []byte(`[{"pid":"A"}]`))
	require.NoError(t, err)

	body, found, err := store.Get(ctx, "irm-erkner703-2023", KindProfiles, "")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `[{"pid":"A"}]`, string(body))

	err = store.Put(ctx, "irm-erkner703-2023", KindProfiles, "", []byte(`[]`))
	require.NoError(t, err)
	body, _, err = store.Get(ctx, "irm-erkner703-2023", KindProfiles, "")
	require.NoError(t, err)
	require.Equal(t, `[]`, string(body))

	has, err := store.Has(ctx, "irm-erkner703-2023", KindPoints, "")
	require.NoError(t, err)
	require.False(t, has)
}

func TestEmptyBodyIsStored(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	err := store.Put(ctx, "e", KindSplits, "pid-1", nil)
	require.NoError(t, err)

	body, found, err := store.Get(ctx, "e", KindSplits, "pid-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, body)
}

func TestMissing(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	err := store.PutMany(ctx, "e", KindSplits, map[string][]byte{
		"B": []byte(`{"list":[]}`),
		"D": []byte(`{"list":[]}`),
	})
	require.NoError(t, err)
	err = store.Put(ctx, "other", KindSplits, "A", []byte(`{}`))
	require.NoError(t, err)

	missing, err := store.Missing(ctx, "e", KindSplits, []string{"A", "B", "C", "D"})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, missing)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	store, err := Open(path, chrono.NewStandardImpl())
	require.NoError(t, err)
	err = store.Put(ctx, "e", KindPoints, "", []byte(`{"list":[]}`))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, chrono.NewStandardImpl())
	require.NoError(t, err)
	defer reopened.Close()

	has, err := reopened.Has(ctx, "e", KindPoints, "")
	require.NoError(t, err)
	require.True(t, has)
}
