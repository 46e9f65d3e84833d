package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	// Missing key
	_, err := s.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	// Put then Get
	require.NoError(t, s.Put([]byte("intent:1"), []byte("first")))
	value, err := s.Get([]byte("intent:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), value)

	// Overwrite
	require.NoError(t, s.Put([]byte("intent:1"), []byte("second")))
	value, err = s.Get([]byte("intent:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), value)

	// Keys
	require.NoError(t, s.Put([]byte("intent:2"), []byte("other")))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	// Delete is idempotent
	require.NoError(t, s.Delete([]byte("intent:2")))
	require.NoError(t, s.Delete([]byte("intent:2")))
	_, err = s.Get([]byte("intent:2"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	value := []byte("mutable")
	require.NoError(t, s.Put([]byte("k"), value))
	value[0] = 'X'

	stored, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), stored)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("intent:9"), []byte("durable")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get([]byte("intent:9"))
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), value)
}
