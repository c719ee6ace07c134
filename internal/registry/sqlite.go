package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS features (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	components TEXT NOT NULL DEFAULT '[]',          -- JSON array of descriptors
	api_endpoints TEXT NOT NULL DEFAULT '[]',
	database_migrations TEXT NOT NULL DEFAULT '[]',
	files TEXT NOT NULL DEFAULT '[]',               -- paths written by integration
	revision INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_dependencies (
	feature_id TEXT NOT NULL,
	depends_on TEXT NOT NULL,
	dependency_type TEXT NOT NULL CHECK (dependency_type IN ('required', 'optional')),
	created_at TEXT NOT NULL,
	PRIMARY KEY (feature_id, depends_on),
	FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE,
	FOREIGN KEY (depends_on) REFERENCES features(id)
);

CREATE INDEX IF NOT EXISTS idx_feature_dependencies_depends_on ON feature_dependencies(depends_on);

CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// SQLiteStore is the default on-disk store.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (or creates) registry.db under basePath.
// basePath ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, basePath string) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, "registry.db")

		// Ensure directory exists
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every transaction; it also keeps a
	// ":memory:" database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{sqlStore{db: db, dialect: dialect{name: "sqlite", schema: sqliteSchema}}}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
