package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Sriharan2222/medlog/pkg/config"
	"github.com/Sriharan2222/medlog/pkg/logger"
)

// QueryTracker observes database operations (tracing, metrics)
type QueryTracker interface {
	TrackQuery(ctx context.Context, operation, table string, fn func(ctx context.Context) (int64, error)) error
}

// DB is the shared storage handle injected into every repository
type DB struct {
	*sql.DB
	logger  *logger.Logger
	tracker QueryTracker
}

// NewConnection opens and verifies a PostgreSQL connection pool
func NewConnection(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established successfully")
	return New(sqlDB, log), nil
}

// New wraps an already opened *sql.DB
func New(sqlDB *sql.DB, log *logger.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: log,
	}
}

// buildConnectionString constructs the PostgreSQL connection string
func buildConnectionString(cfg *config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// SetTracker installs a query tracker
func (db *DB) SetTracker(tracker QueryTracker) {
	db.tracker = tracker
}

// Track runs fn through the installed tracker. fn returns the number of
// rows it touched.
func (db *DB) Track(ctx context.Context, operation, table string, fn func(ctx context.Context) (int64, error)) error {
	if db.tracker == nil {
		_, err := fn(ctx)
		return err
	}
	return db.tracker.TrackQuery(ctx, operation, table, fn)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise. A panic in fn rolls back and is
// re-raised.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logger.WithError(rbErr).Error("Failed to roll back transaction")
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
