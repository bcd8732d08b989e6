// Package factory builds the storage.Store selected by configuration.
package factory

import (
	"fmt"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/database"
	"github.com/motodash/cluster/internal/logging"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/storage/memory"
	"github.com/motodash/cluster/internal/storage/postgres"
	sqlitestorage "github.com/motodash/cluster/internal/storage/sqlite"
)

// Storage backend names accepted in storage.type.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// New creates an uninitialized store. A postgres store that cannot connect
// falls back to an in-memory SQLite store dumped to cfg.SQLite.DumpPath.
func New(cfg config.StorageConfig, logManager *logging.SlogManager) (storage.Store, error) {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}

	switch cfg.Type {
	case TypeMemory, "":
		return memory.New(), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, logManager)
	case TypePostgres:
		mgr := database.NewManager(logManager.Zerolog("database"))
		if err := mgr.Connect(cfg); err != nil {
			return nil, err
		}
		if mgr.Dialect() == database.DialectSQLite {
			fallback := cfg.SQLite
			fallback.Path = ""
			return sqlitestorage.NewFromDB(mgr.DB, fallback, logManager), nil
		}
		return postgres.New(postgres.Dependencies{DB: mgr.DB, LogManager: logManager}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Open creates and initializes a store.
func Open(cfg config.StorageConfig, logManager *logging.SlogManager) (storage.Store, error) {
	store, err := New(cfg, logManager)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init %s store: %w", cfg.Type, err)
	}
	return store, nil
}
