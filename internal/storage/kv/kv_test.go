package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "callHistory")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "callHistory", []byte(`["Ann"]`)))
	require.NoError(t, store.Put(ctx, "callHistory", []byte(`["Ann","Bob"]`)))

	value, ok, err := store.Get(ctx, "callHistory")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["Ann","Bob"]`, string(value))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "kv.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	storeContract(t, store)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	value, ok, err := reopened.Get(context.Background(), "callHistory")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["Ann","Bob"]`, string(value))
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, _, err = store.Get(context.Background(), "callHistory")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	storeContract(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	value, ok, err := reopened.Get(context.Background(), "callHistory")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["Ann","Bob"]`, string(value))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)

	store, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}
