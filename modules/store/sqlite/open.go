package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens (creating if needed) the database at path and returns a Store
// over it. The caller must Close the returned store.
//
// The database uses a single connection (SQLite serialises writes) and the
// defaults of Config. The schema is migrated automatically.
func Open(ctx context.Context, path string) (*Store, error) {
	cfg := Config{Path: path}
	cfg.defaults()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newStore(db), nil
}

func openDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// One connection so PRAGMAs apply consistently and transactions see
	// their own writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout),
		"PRAGMA synchronous=" + cfg.Synchronous,
	}
	if cfg.walEnabled() {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
