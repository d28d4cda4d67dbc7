package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "taskrelay.db"

const (
	maxRetries  = 5
	initialWait = 100 * time.Millisecond
)

// OpenOptions tunes the connection pool and lock behaviour.
type OpenOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	BusyTimeout  time.Duration
}

// DefaultOpenOptions returns the pool settings used when config leaves them unset.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

// DB is the open task database and its prepared query set.
type DB struct {
	conn    *sql.DB
	queries *Queries
	path    string
}

// Open opens dataDir/taskrelay.db, creating it if needed, and applies pending
// migrations.
func Open(dataDir string, opts OpenOptions) (*DB, error) {
	return OpenPath(filepath.Join(dataDir, FileName), opts)
}

// withDefaults fills zero fields from DefaultOpenOptions.
func (o OpenOptions) withDefaults() OpenOptions {
	d := DefaultOpenOptions()
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = d.MaxOpenConns
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = d.MaxIdleConns
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = d.BusyTimeout
	}
	return o
}

// dsn enables WAL and makes every transaction BEGIN IMMEDIATE, so competing
// writers wait out busy_timeout instead of failing on lock upgrade.
func (o OpenOptions) dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, o.BusyTimeout.Milliseconds())
}

// OpenPath opens the database at an explicit file path.
func OpenPath(dbPath string, opts OpenOptions) (*DB, error) {
	opts = opts.withDefaults()

	conn, err := sql.Open("sqlite", opts.dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)

	ctx := context.Background()
	if err := ping(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := migrateUp(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return &DB{conn: conn, queries: New(conn), path: dbPath}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Queries returns the queries bound to the connection pool.
func (db *DB) Queries() *Queries {
	return db.queries
}

// WithTx runs fn inside one transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(db.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ping retries with doubling waits while another process holds the file.
func ping(ctx context.Context, conn *sql.DB) error {
	wait := initialWait
	var err error
	for attempt := 1; ; attempt++ {
		if err = conn.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries {
			return fmt.Errorf("ping database (%d attempts): %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
