package storage

import (
	"fmt"

	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/journal"
)

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.JournalConfig) (journal.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "", backendSQLite:
		return NewSQLiteStorage(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
