package db

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpen_AppliesEveryMigration(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)

	version, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)

	for _, table := range []string{"tasks", "kv_store", "notifications", "inbox_messages"} {
		_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		require.NoError(t, err, "%s table should exist", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	m, err := newMigrator(ctx, database.Conn(), migrationsFS)
	require.NoError(t, err)

	n, err := m.up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "reopening applies nothing")
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO tasks (title, created, status) VALUES ('Report', '2025-01-01T00:00:00Z', 'pending')
	`)
	require.NoError(t, err)

	before, err := database.SchemaVersion(ctx)
	require.NoError(t, err)

	// The newest migration creates inbox_messages.
	require.NoError(t, database.MigrateDown(ctx, 1))

	after, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	_, err = conn.ExecContext(ctx, "SELECT 1 FROM inbox_messages LIMIT 0")
	require.Error(t, err, "inbox_messages should be gone")

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count))
	assert.Equal(t, 1, count, "task rows survive")

	require.NoError(t, migrateUp(ctx, conn))
	_, err = conn.ExecContext(ctx, "SELECT 1 FROM inbox_messages LIMIT 0")
	require.NoError(t, err)
}

func TestMigrateDown_Bounds(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	assert.Error(t, database.MigrateDown(ctx, 0))
	assert.Error(t, database.MigrateDown(ctx, -1))

	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	assert.ErrorContains(t, database.MigrateDown(ctx, len(migrations)+1), "only")
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		if i > 0 {
			assert.Greater(t, m.Version, migrations[i-1].Version)
		}
		assert.NotEmpty(t, m.Up, "migration %d up", m.Version)
		assert.NotEmpty(t, m.Down, "migration %d down", m.Version)
		assert.NotEmpty(t, m.Name, "migration %d name", m.Version)
	}
}

func TestLoadMigrations_Pairing(t *testing.T) {
	file := func(body string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(body)} }

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name: "ordered by version",
			fsys: fstest.MapFS{
				"migrations/0002_b.up.sql":   file("B"),
				"migrations/0002_b.down.sql": file("-B"),
				"migrations/0001_a.up.sql":   file("A"),
				"migrations/0001_a.down.sql": file("-A"),
			},
		},
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"migrations/0001_a.up.sql": file("A"),
			},
			wantErr: "no down file",
		},
		{
			name: "missing up",
			fsys: fstest.MapFS{
				"migrations/0001_a.down.sql": file("-A"),
			},
			wantErr: "no up file",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"migrations/0001_a.up.sql":   file("A"),
				"migrations/0001_b.down.sql": file("-B"),
			},
			wantErr: "named both",
		},
		{
			name: "bad file name",
			fsys: fstest.MapFS{
				"migrations/init.sql": file("A"),
			},
			wantErr: "NNNN_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.fsys)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].Name)
			assert.Equal(t, "-B", got[1].Down)
		})
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename      string
		wantVersion   int
		wantName      string
		wantDirection string
		wantErr       bool
	}{
		{"0001_tasks.up.sql", 1, "tasks", "up", false},
		{"0001_tasks.down.sql", 1, "tasks", "down", false},
		{"0100_big_version.down.sql", 100, "big_version", "down", false},
		{"bad.sql", 0, "", "", true},
		{"0001_tasks.sql", 0, "", "", true},
		{"0000_zero.up.sql", 0, "", "", true},
		{"-1_negative.up.sql", 0, "", "", true},
		{"abc_notnumber.up.sql", 0, "", "", true},
		{"0001_.up.sql", 0, "", "", true},
		{"1_short.up.sql", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDirection, direction)
		})
	}
}
