package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer := NewSigner("secret")
	sig, err := signer.Sign([]byte(`{"id":"backup"}`))
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	require.NoError(t, signer.Verify([]byte(`{"id":"backup"}`), sig))
	require.Error(t, signer.Verify([]byte(`{"id":"tampered"}`), sig))
	require.Error(t, NewSigner("other").Verify([]byte(`{"id":"backup"}`), sig))
}

func TestSignerRequiresSecret(t *testing.T) {
	_, err := NewSigner("").Sign([]byte("payload"))
	require.Error(t, err)
}

func TestLocalStorageSaveAndChecksum(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("nested/file.txt", []byte("abc"))
	require.NoError(t, err)
	assert.True(t, store.Exists("nested/file.txt"))

	sum, err := store.Checksum("nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	data, err := store.ReadFile("nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestLocalStorageEntriesAndCleanup(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("old/a.csv", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("new/b.csv", []byte("b"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old"), past, past))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].Name)

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, deleted)
	assert.False(t, store.Exists("old/a.csv"))
	assert.True(t, store.Exists("new/b.csv"))
}
