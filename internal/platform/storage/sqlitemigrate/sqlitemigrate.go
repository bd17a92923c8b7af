// Package sqlitemigrate applies embedded, forward-only SQL migrations to a
// SQLite database and records which files have run.
package sqlitemigrate

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

const (
	migrationTable = "schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

// Migration describes one migration file and whether it has been applied.
type Migration struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// ApplyMigrations executes embedded migrations from migrationRoot at most once per file.
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		return err
	}

	files, err := listMigrationFiles(migrationFS, migrationRoot)
	if err != nil {
		return err
	}
	for _, file := range files {
		applied, _, err := appliedAt(ctx, sqlDB, file.key)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file.name, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file.readPath)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file.name, err)
		}
		upSQL := ExtractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}
		if err := applyOne(ctx, sqlDB, file, upSQL); err != nil {
			return err
		}
	}
	return nil
}

// Status reports every migration under migrationRoot with its applied state.
func Status(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) ([]Migration, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	if err := ensureMigrationTable(ctx, sqlDB); err != nil {
		return nil, err
	}
	files, err := listMigrationFiles(migrationFS, migrationRoot)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(files))
	for _, file := range files {
		applied, at, err := appliedAt(ctx, sqlDB, file.key)
		if err != nil {
			return nil, fmt.Errorf("check migration %s: %w", file.name, err)
		}
		out = append(out, Migration{Name: file.key, Applied: applied, AppliedAt: at})
	}
	return out, nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		return body[:downIdx]
	}
	return body
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

type migrationFile struct {
	name     string
	key      string
	readPath string
}

func listMigrationFiles(migrationFS fs.FS, migrationRoot string) ([]migrationFile, error) {
	root := strings.TrimSpace(migrationRoot)
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		file := migrationFile{
			name:     entry.Name(),
			key:      entry.Name(),
			readPath: path.Join(root, entry.Name()),
		}
		if root != "." {
			file.key = path.Join(root, entry.Name())
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func ensureMigrationTable(ctx context.Context, sqlDB *sql.DB) error {
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, sqlDB *sql.DB, file migrationFile, upSQL string) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", file.name, err)
	}
	if _, err := tx.ExecContext(ctx, upSQL); err != nil && !IsAlreadyExistsError(err) {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", file.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
		file.key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file.name, err)
	}
	return nil
}

func appliedAt(ctx context.Context, sqlDB *sql.DB, name string) (bool, time.Time, error) {
	var millis int64
	err := sqlDB.QueryRowContext(ctx, "SELECT applied_at FROM "+migrationTable+" WHERE name = ?", name).Scan(&millis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	return true, time.UnixMilli(millis).UTC(), nil
}
