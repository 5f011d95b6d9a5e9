package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("backup_a", []byte(`{"id":"a"}`)))

	data, err := store.Get("backup_a")
	require.NoError(t, err)
	require.Equal(t, `{"id":"a"}`, string(data))

	exists, err := store.Exists("backup_a")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Delete("backup_a"))

	_, err = store.Get("backup_a")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err = store.Exists("backup_a")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := NewMemoryStore()
	payload := []byte("original")
	require.NoError(t, store.Put("k", payload))

	payload[0] = 'X'

	data, err := store.Get("k")
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("backup_b", []byte("payload")))

	data, err := store.Get("backup_b")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	require.NoError(t, store.Delete("backup_b"))
	_, err = store.Get("backup_b")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete("backup_b"))
}

func TestFilesystemStoreSanitisesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFilesystemStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("../escape", []byte("x")))

	data, err := store.Get("../escape")
	require.NoError(t, err)
	require.Equal(t, "x", string(data))
}
