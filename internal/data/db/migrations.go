package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// migrationFile matches NNNN_name.up.sql and NNNN_name.down.sql.
var migrationFile = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one schema step.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// loadMigrations reads every migration pair under migrations/ in fsys,
// sorted by version. Each version must have exactly one up and one down file
// with the same name.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, direction, err := parseFilename(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration %04d is named both %q and %q", version, m.Name, name)
		}

		slot := &m.Up
		if direction == "down" {
			slot = &m.Down
		}
		if *slot != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %04d", direction, version)
		}
		*slot = string(content)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case m.Up == "":
			return nil, fmt.Errorf("migration %04d has no up file", m.Version)
		case m.Down == "":
			return nil, fmt.Errorf("migration %04d has no down file", m.Version)
		}
		out = append(out, *m)
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// parseFilename splits a migration file name into version, name and direction.
func parseFilename(filename string) (int, string, string, error) {
	match := migrationFile.FindStringSubmatch(filename)
	if match == nil {
		return 0, "", "", fmt.Errorf("expected NNNN_name.{up,down}.sql")
	}

	version, _ := strconv.Atoi(match[1])
	if version == 0 {
		return 0, "", "", fmt.Errorf("version must be positive")
	}

	return version, match[2], match[3], nil
}

// migrator applies and reverts migrations, tracking them in schema_migrations.
type migrator struct {
	conn       *sql.DB
	migrations []Migration
	log        zerolog.Logger
}

func newMigrator(ctx context.Context, conn *sql.DB, fsys fs.FS) (*migrator, error) {
	migrations, err := loadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	return &migrator{
		conn:       conn,
		migrations: migrations,
		log:        log.With().Str("cmp", "migrate").Logger(),
	}, nil
}

func (m *migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// up applies every pending migration and returns how many ran.
func (m *migrator) up(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}

		m.log.Debug().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")
		err := m.step(ctx, mig.Up,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Name, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return n, fmt.Errorf("migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		n++
	}

	return n, nil
}

// down reverts the n most recent applied migrations.
func (m *migrator) down(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive, got %d", n)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	var revert []Migration
	for _, mig := range slices.Backward(m.migrations) {
		if applied[mig.Version] {
			revert = append(revert, mig)
		}
	}
	if n > len(revert) {
		return fmt.Errorf("cannot revert %d migrations, only %d applied", n, len(revert))
	}

	for _, mig := range revert[:n] {
		m.log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("reverting migration")
		err := m.step(ctx, mig.Down, "DELETE FROM schema_migrations WHERE version = ?", mig.Version)
		if err != nil {
			return fmt.Errorf("revert %04d_%s: %w", mig.Version, mig.Name, err)
		}
	}

	return nil
}

// step runs a migration body and its bookkeeping statement in one transaction.
func (m *migrator) step(ctx context.Context, body, record string, args ...any) error {
	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

func migrateUp(ctx context.Context, conn *sql.DB) error {
	m, err := newMigrator(ctx, conn, migrationsFS)
	if err != nil {
		return err
	}
	n, err := m.up(ctx)
	if n > 0 {
		m.log.Info().Int("applied", n).Msg("database schema updated")
	}
	return err
}

// MigrateDown reverts the last n applied migrations, newest first.
func (db *DB) MigrateDown(ctx context.Context, n int) error {
	m, err := newMigrator(ctx, db.conn, migrationsFS)
	if err != nil {
		return err
	}
	return m.down(ctx, n)
}

// SchemaVersion returns the highest applied migration version, 0 on an empty
// database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
