package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sim-portal/project-portal/project-portal-backend/internal/config"
)

// DB holds the two views of one connection pool: gorm for the write path
// and sqlx for hand-written read queries.
type DB struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

// Close closes the shared pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// Open connects using the configured driver.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "postgres", "":
		return openPostgres(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	sqlDB, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialise gorm: %w", err)
	}

	log.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db_name", cfg.DBName))
	return &DB{Gorm: gdb, SQL: sqlDB}, nil
}

// OpenSQLite opens a file database. SQLite serializes writers on the whole
// file, so the pool is limited to one connection and concurrent callers
// queue the way row-locked Postgres sessions do.
func OpenSQLite(path string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return &DB{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, "sqlite")}, nil
}

// Migrate creates or updates the tables for models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a Postgres serialization failure or
// deadlock. The core never retries; callers that own a retry policy use
// this to decide.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
