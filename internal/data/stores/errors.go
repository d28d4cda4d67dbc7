package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/data/db"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// corruptMessages are driver messages seen when the file is not usable even
// though no result code was attached.
var corruptMessages = []string{
	"database disk image is malformed",
	"file is not a database",
	"database corruption",
}

// sqliteCode returns the primary result code carried by err.
func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code() & 0xff, true
}

func IsBusyError(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_BUSY
}

// IsConstraintError reports CHECK, NOT NULL and UNIQUE violations.
func IsConstraintError(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsCorruptionError reports whether the database file has to be replaced
// before it can be opened again.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		return slices.Contains([]int{sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN}, code)
	}
	msg := err.Error()
	return slices.ContainsFunc(corruptMessages, func(m string) bool {
		return strings.Contains(msg, m)
	})
}

// RecoverFromCorruption renames the task database in dataDir, together with
// its -wal and -shm companions, to <name>.corrupt.<stamp> so the next Open
// starts from an empty schema. It returns the backup path, or "" when there
// was no database to move.
func RecoverFromCorruption(dataDir string) (string, error) {
	live := filepath.Join(dataDir, db.FileName)
	backup := fmt.Sprintf("%s.corrupt.%s", live, time.Now().UTC().Format("20060102-150405"))

	moved := false
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Rename(live+suffix, backup+suffix)
		switch {
		case err == nil:
			moved = moved || suffix == ""
		case errors.Is(err, os.ErrNotExist):
		case suffix == "":
			return "", fmt.Errorf("move corrupt database aside: %w", err)
		default:
			// A leftover journal would be replayed against the fresh file.
			if rmErr := os.Remove(live + suffix); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return "", fmt.Errorf("drop %s journal: %w", suffix, err)
			}
		}
	}

	if !moved {
		return "", nil
	}
	return backup, nil
}
