// Package sqlitestorage implements storage.Store on SQLite. An empty path
// selects a shared in-memory database that is periodically written to disk
// with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/database"
	"github.com/motodash/cluster/internal/logging"
	gormstorage "github.com/motodash/cluster/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       config.SQLiteConfig
	log       *logging.SlogManager
	stopChan  chan struct{}
	done      chan struct{}
	started   bool
	closeOnce sync.Once
}

// New opens the SQLite database named by cfg.Path.
func New(cfg config.SQLiteConfig, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.OpenSqlite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	return NewFromDB(db, cfg, logManager), nil
}

// NewFromDB wraps an already opened SQLite connection.
func NewFromDB(db *gorm.DB, cfg config.SQLiteConfig, logManager *logging.SlogManager) *Backend {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         db,
			LogManager: logManager,
		}),
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// InMemory reports whether the database lives only in memory.
func (b *Backend) InMemory() bool {
	return b.cfg.Path == ""
}

func (b *Backend) dumping() bool {
	return b.InMemory() && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	b.started = true
	if b.dumping() {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump of an in-memory
// database and closes the embedded GORM backend.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.started {
			<-b.done
		}
		if b.started && b.dumping() {
			if dumpErr := b.DumpTo(b.cfg.DumpPath); dumpErr != nil {
				b.log.WriteLog("sqlite:Close", fmt.Sprintf("Final dump failed: %v", dumpErr), "ERROR")
			}
		}
		err = b.Backend.Close()
	})
	return err
}

// DumpTo writes a point-in-time copy of the database to path.
func (b *Backend) DumpTo(path string) error {
	return database.DumpMemoryDBToDisk(b.db, path)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.DumpTo(b.cfg.DumpPath); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
