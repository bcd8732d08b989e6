// Package postgres implements storage.Store on PostgreSQL. Telemetry
// samples go through an internal queue drained by a background writer.
package postgres

import (
	"fmt"
	"sync"
	"time"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/database"
	"github.com/motodash/cluster/internal/logging"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/queue"
	gormstorage "github.com/motodash/cluster/internal/storage/gorm"

	"gorm.io/gorm"
)

// DefaultWriteInterval is how often queued samples are written.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the Postgres backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	WriteInterval time.Duration
}

// Backend implements storage.Store on Postgres with queue-based sample writes.
type Backend struct {
	*gormstorage.Backend
	deps      Dependencies
	samples   *queue.Queue[model.TelemetrySample]
	writeMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	started   bool
	closeOnce sync.Once
}

// Open connects to Postgres, verifies the connection and wraps it.
func Open(cfg config.PostgresConfig, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return New(Dependencies{DB: db, LogManager: logManager}), nil
}

// New wraps an already opened connection.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         deps.DB,
			LogManager: deps.LogManager,
		}),
		deps:     deps,
		samples:  queue.New[model.TelemetrySample](),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.started = true
	go b.writeLoop()
	return nil
}

// Close stops the writer, flushes pending samples and closes the pool.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.started {
			<-b.done
		}
		if flushErr := b.Flush(); flushErr != nil {
			b.deps.LogManager.WriteLog("postgres:Close", fmt.Sprintf("Dropping unwritten samples: %v", flushErr), "ERROR")
		}
		err = b.Backend.Close()
	})
	return err
}

// RecordSamples queues samples for the background writer.
func (b *Backend) RecordSamples(samples []model.TelemetrySample) error {
	b.samples.Push(samples...)
	return nil
}

// RecentSamples flushes pending samples so reads see every recorded one.
func (b *Backend) RecentSamples(limit int) ([]model.TelemetrySample, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.Backend.RecentSamples(limit)
}

// Pending returns how many samples wait in the write queue.
func (b *Backend) Pending() int {
	return b.samples.Len()
}

// Flush writes all queued samples in one transaction. On failure the
// samples go back on the queue.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.samples.Empty() {
		return nil
	}

	items := b.samples.GetAndEmpty()
	err := b.DB().Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(items, gormstorage.SampleBatchSize).Error
	})
	if err != nil {
		b.samples.Push(items...)
		return fmt.Errorf("error writing %d samples: %w", len(items), err)
	}
	return nil
}

// writeLoop periodically drains the sample queue into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.LogManager.WriteLog(":DB:WRITER:", err.Error(), "ERROR")
			}
		}
	}
}
