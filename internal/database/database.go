package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared-cache in-memory SQLite database used when no
// file path is configured.
const MemoryDSN = "file::memory:?cache=shared"

// Dialect names as reported by gorm.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	Logger          zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid:         false,
		ShouldSaveLocal: false,
		Logger:          log,
	}
}

// Connect opens the database selected by cfg.Type. A postgres type that
// cannot be reached falls back to an in-memory SQLite database and sets
// ShouldSaveLocal so the caller dumps it to disk.
func (m *Manager) Connect(cfg config.StorageConfig) error {
	var err error

	switch cfg.Type {
	case DialectSQLite:
		m.ShouldSaveLocal = cfg.SQLite.Path == ""
		m.DB, err = OpenSqlite(cfg.SQLite.Path)
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to open SQLite DB: %w", err)
		}
	case DialectPostgres:
		m.DB, err = m.connectPostgres(cfg.Postgres)
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
			m.ShouldSaveLocal = true
			m.DB, err = OpenSqlite("")
			if err != nil {
				m.IsValid = false
				return fmt.Errorf("failed to get local SQLite DB: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to access sql interface: %w", err)
	}

	if m.Dialect() == DialectSQLite {
		m.Logger.Info().Str("path", cfg.SQLite.Path).Bool("inMemory", m.ShouldSaveLocal).Msg("Using local SQLite DB")
	} else {
		m.SqlDB.SetMaxOpenConns(10)
		m.Logger.Info().Msg("Connected to database")
	}

	m.IsValid = true
	return nil
}

func (m *Manager) connectPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	m.Logger.Debug().Str("host", cfg.Host).Str("port", cfg.Port).Str("database", cfg.Database).Msg("Connecting to Postgres DB")

	db, err := OpenPostgres(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	return db, nil
}

// Dialect returns the connected dialect name, or "" before Connect.
func (m *Manager) Dialect() string {
	if m.DB == nil {
		return ""
	}
	return m.DB.Dialector.Name()
}

// Setup migrates the schema and seeds default rows.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return errors.New("database not connected")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}

	seeded, err := SeedWarnings(m.DB, time.Now())
	if err != nil {
		m.IsValid = false
		return err
	}
	if seeded {
		m.Logger.Info().Msg("Seeded default warning")
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// OpenPostgres returns a connection to the Postgres database.
func OpenPostgres(cfg config.PostgresConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite returns a connection to a SQLite database.
// If path is empty, uses the shared in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedWarnings inserts model.SeedWarning when the warnings table is empty.
func SeedWarnings(db *gorm.DB, now time.Time) (bool, error) {
	var count int64
	if err := db.Model(&model.Warning{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count warnings: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	w := model.SeedWarning(now)
	if err := db.Create(&w).Error; err != nil {
		return false, fmt.Errorf("failed to seed warning: %w", err)
	}
	return true, nil
}

// DumpMemoryDBToDisk vacuums the in-memory database to a disk file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	// VACUUM INTO refuses to overwrite
	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	err := db.Exec("VACUUM INTO 'file:" + sqliteFilePath + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	return nil
}
