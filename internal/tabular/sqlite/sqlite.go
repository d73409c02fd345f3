// Package sqlite implements the tabular store on a local SQLite file. Rows
// are stored per sheet as JSON-encoded string arrays; no statement touches
// more than one row, matching the no-multi-row-atomicity contract the engine
// is written against.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

var (
	_ tabular.Store    = (*Store)(nil)
	_ tabular.Migrator = (*Store)(nil)
)

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// RunMigrations applies the embedded schema migrations on a separate
// connection so it does not interfere with the main pool.
func RunMigrations(dbPath string) error {
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSheet implements tabular.Migrator. The rows table is schemaless per
// sheet, so there is no header to migrate.
func (s *Store) EnsureSheet(context.Context, string, []string) error { return nil }

func (s *Store) AppendRow(ctx context.Context, sheet string, values []string) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO rows (sheet, data) VALUES (?, ?)`, sheet, string(data))
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", sheet, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", sheet, err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) UpdateRow(ctx context.Context, sheet, ref string, values []string) error {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid row ref %q for %s", ref, sheet)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE rows SET data = ? WHERE id = ? AND sheet = ?`, string(data), id, sheet)
	if err != nil {
		return fmt.Errorf("update row %d in %s: %w", id, sheet, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "row", ID: ref}
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, sheet, ref string) error {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid row ref %q for %s", ref, sheet)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rows WHERE id = ? AND sheet = ?`, id, sheet)
	if err != nil {
		return fmt.Errorf("delete row %d from %s: %w", id, sheet, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "row", ID: ref}
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, sheet string) ([]tabular.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM rows WHERE sheet = ? ORDER BY id`, sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	defer rows.Close()

	var out []tabular.Row
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", sheet, err)
		}
		var values []string
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", sheet, id, err)
		}
		out = append(out, tabular.Row{Ref: strconv.FormatInt(id, 10), Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return out, nil
}
