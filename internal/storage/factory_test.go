package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageMemory(t *testing.T) {
	s, err := NewStorage(Config{Type: StorageTypeMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStorage)
	assert.True(t, ok)
}

func TestNewStorageSQLite(t *testing.T) {
	s, err := NewStorage(Config{Type: StorageTypeSQLite, SQLitePath: t.TempDir() + "/f.db"})
	require.NoError(t, err)
	defer CloseStorage(s)
	_, ok := s.(*SQLiteStorage)
	assert.True(t, ok)
}

func TestNewStorageFallsBackOnSQLiteFailure(t *testing.T) {
	// A path whose parent directory does not exist causes sqlite open
	// to fail; the fallback to memory storage should still succeed.
	s, err := NewStorage(Config{Type: StorageTypeSQLite, SQLitePath: "/nonexistent-dir-xyz/f.db", FallbackType: StorageTypeMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStorage)
	assert.True(t, ok)
}

func TestNewStorageUnknownType(t *testing.T) {
	_, err := NewStorage(Config{Type: "bogus"})
	assert.Error(t, err)
}
