// Package storage provides the factory for building the backend that
// persists sessions, thinking nodes, reasoning edges, decision points, and
// memory entries (spec §6's abstract table layout).
package storage

import (
	"fmt"
	"io"
	"log"
)

// NewStorage builds the backend named by cfg.Type, falling back to
// cfg.FallbackType (typically in-memory) if the primary backend fails to
// initialize.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeMemory:
		log.Println("Initializing in-memory graph/session storage")
		return NewMemoryStorage(), nil

	case StorageTypeSQLite:
		log.Printf("Initializing SQLite-backed graph storage at %s", cfg.SQLitePath)
		sqliteStore, err := NewSQLiteStorage(cfg.SQLitePath, cfg.SQLiteTimeout)
		if err != nil {
			if cfg.FallbackType != "" && cfg.FallbackType != cfg.Type {
				log.Printf("SQLite storage init failed: %v. Falling back to %s", err, cfg.FallbackType)
				return NewStorage(Config{Type: cfg.FallbackType})
			}
			return nil, fmt.Errorf("sqlite initialization failed: %w", err)
		}
		return sqliteStore, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewStorageFromEnv builds storage from the STORAGE_TYPE/SQLITE_* process
// environment variables (internal/config reads the same variables through
// ConfigFromEnv).
func NewStorageFromEnv() (Storage, error) {
	cfg := ConfigFromEnv()
	return NewStorage(cfg)
}

// CloseStorage closes s if its backend implements io.Closer (the SQLite
// backend does; the in-memory one does not).
func CloseStorage(s Storage) error {
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
