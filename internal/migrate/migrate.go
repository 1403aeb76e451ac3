// Package migrate applies versioned SQL files to a SQLite database.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migration is a migration that was applied.
type Migration struct {
	// Sequence is the position of the migration. Starts at 0.
	Sequence int
	Filename string
	Metadata Metadata
}

// Equal checks if two migrations are equal.
func (m Migration) Equal(other Migration) bool {
	return m.Sequence == other.Sequence &&
		m.Filename == other.Filename &&
		m.Metadata.AppVersion == other.Metadata.AppVersion &&
		m.Metadata.Timestamp.Equal(other.Metadata.Timestamp)
}

// Metadata is stored alongside every applied migration.
type Metadata struct {
	AppVersion string
	Timestamp  time.Time
}

const schemaTableQuery = `CREATE TABLE IF NOT EXISTS schema_migrations (
	sequence    INTEGER PRIMARY KEY,
	filename    TEXT NOT NULL,
	app_version TEXT NOT NULL,
	applied_at  TIMESTAMP NOT NULL
)
`

var (
	// ErrNoTable indicates the schema_migrations table does not exist.
	ErrNoTable = errors.New("schema_migrations table does not exist")
	// ErrMigrationsMismatch indicates the applied migrations differ from the available files.
	ErrMigrationsMismatch = errors.New("migrations mismatch")
)

// MigrationError is returned when a migration file fails to execute.
type MigrationError struct {
	Sequence int
	Filename string
	Err      error
}

func (m MigrationError) Error() string {
	return fmt.Sprintf("migration [%d] %q failed: %v", m.Sequence, m.Filename, m.Err)
}

func (m MigrationError) Unwrap() error {
	return m.Err
}

// RunFS applies all pending migrations found in the root of fileSys, in lexical
// order, inside a single transaction. Only files ending in .sql are considered.
// It returns the migrations that were applied by this call.
func RunFS(ctx context.Context, db *sql.DB, fileSys fs.FS, meta Metadata) ([]Migration, error) {
	files, err := loadFiles(fileSys)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, schemaTableQuery)
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to create schema_migrations table: %w", err))
	}

	applied, err := queryWith(func(q string) (*sql.Rows, error) {
		return tx.QueryContext(ctx, q)
	})
	if err != nil {
		return nil, rollback(tx, err)
	}

	pending, err := pendingFiles(applied, files)
	if err != nil {
		return nil, rollback(tx, err)
	}

	result, err := apply(ctx, tx, len(applied), pending, meta)
	if err != nil {
		return nil, rollback(tx, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// Pending returns the names of the files in fileSys that have not been applied
// to db yet. A database without a schema_migrations table has every file pending.
func Pending(ctx context.Context, db *sql.DB, fileSys fs.FS) ([]string, error) {
	files, err := loadFiles(fileSys)
	if err != nil {
		return nil, err
	}

	applied, err := QueryMigrations(ctx, db)
	if err != nil && !errors.Is(err, ErrNoTable) {
		return nil, err
	}

	pending, err := pendingFiles(applied, files)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(pending))
	for _, f := range pending {
		names = append(names, f.name)
	}

	return names, nil
}

// pendingFiles verifies that every applied migration still matches the file
// at the same position and returns the remaining files.
func pendingFiles(applied []Migration, files []file) ([]file, error) {
	if len(applied) > len(files) {
		return nil, fmt.Errorf(
			"found %d applied migrations but only have %d files: %w",
			len(applied), len(files), ErrMigrationsMismatch,
		)
	}

	for i, m := range applied {
		if i != m.Sequence {
			return nil, fmt.Errorf(
				"migration sequence mismatch, wanted %d got %d", i, m.Sequence,
			)
		}

		if m.Filename != files[i].name {
			return nil, fmt.Errorf(
				"migration %d was applied as %s, but now encountering %s: %w",
				i, m.Filename, files[i].name, ErrMigrationsMismatch,
			)
		}
	}

	return files[len(applied):], nil
}

func apply(ctx context.Context, tx *sql.Tx, offset int, files []file, meta Metadata) ([]Migration, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO schema_migrations (sequence, filename, app_version, applied_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	result := make([]Migration, 0, len(files))
	for i, f := range files {
		m := Migration{
			Sequence: offset + i,
			Filename: f.name,
			Metadata: meta,
		}

		_, err := tx.ExecContext(ctx, f.content)
		if err != nil {
			return nil, MigrationError{
				Sequence: m.Sequence,
				Filename: m.Filename,
				Err:      err,
			}
		}

		_, err = stmt.ExecContext(ctx, m.Sequence, m.Filename, m.Metadata.AppVersion, m.Metadata.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to record migration %q: %w", m.Filename, err)
		}

		result = append(result, m)
	}

	return result, nil
}

// QueryMigrations returns all migrations applied to db.
// If the schema_migrations table does not exist yet, it returns ErrNoTable.
func QueryMigrations(ctx context.Context, db *sql.DB) ([]Migration, error) {
	return queryWith(func(q string) (*sql.Rows, error) {
		return db.QueryContext(ctx, q)
	})
}

func queryWith(rowsFunc func(q string) (*sql.Rows, error)) ([]Migration, error) {
	const q = `SELECT sequence, filename, app_version, applied_at FROM schema_migrations ORDER BY sequence`
	rows, err := rowsFunc(q)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, ErrNoTable
		}
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	migrations := make([]Migration, 0)
	for rows.Next() {
		var m Migration
		err := rows.Scan(&m.Sequence, &m.Filename, &m.Metadata.AppVersion, &m.Metadata.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}

		migrations = append(migrations, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over rows: %w", err)
	}

	return migrations, nil
}

type file struct {
	name    string
	content string
}

func loadFiles(fileSys fs.FS) ([]file, error) {
	names, err := fs.Glob(fileSys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	sort.Strings(names)

	files := make([]file, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fileSys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", name, err)
		}

		files = append(files, file{
			name:    path.Base(name),
			content: string(content),
		})
	}

	return files, nil
}

func rollback(tx *sql.Tx, err error) error {
	rErr := tx.Rollback()
	if rErr != nil {
		return errors.Join(err, rErr)
	}

	return err
}
