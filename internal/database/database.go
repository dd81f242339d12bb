package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"travelbook/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"github.com/rs/zerolog"
)

// DB is the relational user store. It also persists the bookkeeping queue.
type DB struct {
	*sql.DB
	driver string
	path   string
	logger *zerolog.Logger
}

func NewDB(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		conn, err = sql.Open("sqlite3", sqliteDSN(cfg.Path))
	case config.DriverPostgres:
		conn, err = sql.Open("pgx", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, driver: cfg.Driver, path: cfg.Path, logger: logger}
	if err := db.createTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Database initialized")
	return db, nil
}

// sqliteDSN waits on locks instead of failing fast and takes the write lock
// when a transaction begins, so concurrent registrations queue up.
func sqliteDSN(path string) string {
	return path + "?_busy_timeout=5000&_txlock=immediate"
}

func (db *DB) createTables(ctx context.Context) error {
	timestamp := "DATETIME"
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == config.DriverPostgres {
		timestamp = "TIMESTAMPTZ"
		serial = "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'customer',
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at ` + timestamp + ` NOT NULL,
            updated_at ` + timestamp + ` NOT NULL,
            last_login ` + timestamp + `
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id ` + serial + `,
            task_type TEXT NOT NULL,
            table_name TEXT NOT NULL,
            row_id TEXT NOT NULL DEFAULT '',
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at ` + timestamp + ` NOT NULL,
            processed_at ` + timestamp + `,
            next_retry_at ` + timestamp + `
        )`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) Driver() string {
	return db.driver
}
