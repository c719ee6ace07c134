package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// registryLockKey is the pg_advisory_xact_lock key shared by every
// read-write registry transaction.
const registryLockKey int64 = 0x7464_6272_6567 // "tdbreg"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS features (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	components TEXT NOT NULL DEFAULT '[]',
	api_endpoints TEXT NOT NULL DEFAULT '[]',
	database_migrations TEXT NOT NULL DEFAULT '[]',
	files TEXT NOT NULL DEFAULT '[]',
	revision BIGINT NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_dependencies (
	feature_id TEXT NOT NULL REFERENCES features(id) ON DELETE CASCADE,
	depends_on TEXT NOT NULL REFERENCES features(id),
	dependency_type TEXT NOT NULL CHECK (dependency_type IN ('required', 'optional')),
	created_at TEXT NOT NULL,
	PRIMARY KEY (feature_id, depends_on)
);

CREATE INDEX IF NOT EXISTS idx_feature_dependencies_depends_on ON feature_dependencies(depends_on);

CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// PostgresStore keeps the registry in Postgres. Read-write transactions take
// a transaction-scoped advisory lock, so concurrent processes sharing the
// database are serialized as well.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects with dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{sqlStore{db: db, dialect: dialect{
		name:     "postgres",
		numbered: true,
		schema:   postgresSchema,
		lock: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey)
			return err
		},
	}}}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
