package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so store helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CatalogDB wraps the SQLite catalog store. All store calls go through a
// per-call timeout so no batch operation can block indefinitely.
type CatalogDB struct {
	conn         *sql.DB
	queryTimeout time.Duration
}

// Options configures the connection pool and per-call timeout.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultOptions returns the defaults used by the server and CLI.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    10 * time.Second,
	}
}

// Open opens (creating if needed) the catalog database and applies
// migrations.
func Open(path string, opts Options) (*CatalogDB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(opts.ConnMaxLifetime)

	db := &CatalogDB{conn: conn, queryTimeout: opts.QueryTimeout}
	if db.queryTimeout <= 0 {
		db.queryTimeout = DefaultOptions().QueryTimeout
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate catalog database: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection pool.
func (db *CatalogDB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw connection for tests.
func (db *CatalogDB) Conn() *sql.DB {
	return db.conn
}

// opCtx derives the per-call timeout context.
func (db *CatalogDB) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.queryTimeout)
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic. The tree reorganizer relies on this for its
// all-or-nothing operations.
func (db *CatalogDB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[DB] Rollback failed: %v (after: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// placeholders builds "?,?,..." for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
