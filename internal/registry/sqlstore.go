package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	schema   string
	// lock runs at the start of every read-write transaction.
	lock func(ctx context.Context, tx *sql.Tx) error
}

// sqlStore implements Store over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("init %s schema: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("registry.view", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{store: s, tx: tx})
}

func (s *sqlStore) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("registry.update", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if s.dialect.lock != nil {
		if err := s.dialect.lock(ctx, tx); err != nil {
			return persistence("registry.update", fmt.Errorf("acquire registry lock: %w", err))
		}
	}
	if err := fn(&sqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence("registry.update", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *sqlStore) ApplyMigration(ctx context.Context, id, up string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, persistence("registry.migrate", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if s.dialect.lock != nil {
		if err := s.dialect.lock(ctx, tx); err != nil {
			return false, persistence("registry.migrate", fmt.Errorf("acquire registry lock: %w", err))
		}
	}

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM schema_migrations WHERE id = ?`), id).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, persistence("registry.migrate", fmt.Errorf("check ledger: %w", err))
	}

	if strings.TrimSpace(up) != "" {
		if _, err := tx.ExecContext(ctx, up); err != nil {
			return false, persistence("registry.migrate", fmt.Errorf("apply %s: %w", id, err))
		}
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`),
		id, time.Now().UTC().Format(timeLayout)); err != nil {
		return false, persistence("registry.migrate", fmt.Errorf("record %s: %w", id, err))
	}
	if err := tx.Commit(); err != nil {
		return false, persistence("registry.migrate", fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

func (s *sqlStore) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, applied_at FROM schema_migrations ORDER BY applied_at, id`)
	if err != nil {
		return nil, persistence("registry.migrations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		var at string
		if err := rows.Scan(&m.ID, &at); err != nil {
			return nil, persistence("registry.migrations", fmt.Errorf("scan migration: %w", err))
		}
		m.AppliedAt, _ = time.Parse(timeLayout, at)
		out = append(out, m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, persistence("registry.migrations", err)
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// checkRowsErr reports errors that ended a rows.Next() loop early.
func checkRowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

type sqlTx struct {
	store *sqlStore
	tx    *sql.Tx
}

const featureColumns = `id, name, version, description, enabled, components, api_endpoints,
	database_migrations, files, revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*FeatureDefinition, error) {
	var (
		f                                 FeatureDefinition
		components, endpoints, migrations string
		files, createdAt, updatedAt       string
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Version, &f.Description, &f.Enabled,
		&components, &endpoints, &migrations, &files, &f.Revision, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(components, &f.Components); err != nil {
		return nil, fmt.Errorf("decode components of %s: %w", f.ID, err)
	}
	if err := decodeJSON(endpoints, &f.APIEndpoints); err != nil {
		return nil, fmt.Errorf("decode api endpoints of %s: %w", f.ID, err)
	}
	if err := decodeJSON(migrations, &f.DatabaseMigrations); err != nil {
		return nil, fmt.Errorf("decode migrations of %s: %w", f.ID, err)
	}
	if err := decodeJSON(files, &f.Files); err != nil {
		return nil, fmt.Errorf("decode files of %s: %w", f.ID, err)
	}
	f.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	f.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &f, nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func featureArgs(f *FeatureDefinition) ([]any, error) {
	components, err := encodeJSON(f.Components)
	if err != nil {
		return nil, fmt.Errorf("encode components: %w", err)
	}
	endpoints, err := encodeJSON(f.APIEndpoints)
	if err != nil {
		return nil, fmt.Errorf("encode api endpoints: %w", err)
	}
	migrations, err := encodeJSON(f.DatabaseMigrations)
	if err != nil {
		return nil, fmt.Errorf("encode migrations: %w", err)
	}
	files, err := encodeJSON(f.Files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	return []any{f.Name, f.Version, f.Description, f.Enabled, components, endpoints, migrations, files}, nil
}

func (t *sqlTx) GetFeature(ctx context.Context, id string) (*FeatureDefinition, error) {
	row := t.tx.QueryRowContext(ctx, t.store.rebind(`SELECT `+featureColumns+` FROM features WHERE id = ?`), id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistence("registry.get", err)
	}
	return f, nil
}

func (t *sqlTx) ListFeatures(ctx context.Context) ([]*FeatureDefinition, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+featureColumns+` FROM features ORDER BY id`)
	if err != nil {
		return nil, persistence("registry.list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FeatureDefinition
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, persistence("registry.list", fmt.Errorf("scan feature: %w", err))
		}
		out = append(out, f)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, persistence("registry.list", err)
	}
	return out, nil
}

func (t *sqlTx) InsertFeature(ctx context.Context, f *FeatureDefinition) error {
	var exists int
	err := t.tx.QueryRowContext(ctx, t.store.rebind(`SELECT 1 FROM features WHERE id = ?`), f.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return persistence("registry.insert", err)
	}

	args, err := featureArgs(f)
	if err != nil {
		return persistence("registry.insert", err)
	}
	args = append([]any{f.ID}, args...)
	args = append(args, f.Revision, f.CreatedAt.UTC().Format(timeLayout), f.UpdatedAt.UTC().Format(timeLayout))

	_, err = t.tx.ExecContext(ctx, t.store.rebind(`INSERT INTO features (`+featureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
	if err != nil {
		return persistence("registry.insert", fmt.Errorf("insert feature %s: %w", f.ID, err))
	}
	return nil
}

func (t *sqlTx) UpdateFeature(ctx context.Context, f *FeatureDefinition) error {
	args, err := featureArgs(f)
	if err != nil {
		return persistence("registry.update", err)
	}
	args = append(args, f.UpdatedAt.UTC().Format(timeLayout), f.ID, f.Revision)

	res, err := t.tx.ExecContext(ctx, t.store.rebind(`UPDATE features SET
		name = ?, version = ?, description = ?, enabled = ?, components = ?, api_endpoints = ?,
		database_migrations = ?, files = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?`), args...)
	if err != nil {
		return persistence("registry.update", fmt.Errorf("update feature %s: %w", f.ID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("registry.update", err)
	}
	if n == 0 {
		if _, err := t.GetFeature(ctx, f.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s at revision %d", ErrRevisionConflict, f.ID, f.Revision)
	}
	f.Revision++
	return nil
}

func (t *sqlTx) DeleteFeature(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, t.store.rebind(`DELETE FROM feature_dependencies WHERE feature_id = ?`), id); err != nil {
		return persistence("registry.delete", fmt.Errorf("delete edges of %s: %w", id, err))
	}
	res, err := t.tx.ExecContext(ctx, t.store.rebind(`DELETE FROM features WHERE id = ?`), id)
	if err != nil {
		return persistence("registry.delete", fmt.Errorf("delete feature %s: %w", id, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (t *sqlTx) queryEdges(ctx context.Context, where string, args ...any) ([]DependencyEdge, error) {
	q := `SELECT feature_id, depends_on, dependency_type FROM feature_dependencies`
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY feature_id, depends_on"

	rows, err := t.tx.QueryContext(ctx, t.store.rebind(q), args...)
	if err != nil {
		return nil, persistence("registry.edges", err)
	}
	defer func() { _ = rows.Close() }()

	out := []DependencyEdge{}
	for rows.Next() {
		var e DependencyEdge
		if err := rows.Scan(&e.FeatureID, &e.DependsOn, &e.Type); err != nil {
			return nil, persistence("registry.edges", fmt.Errorf("scan edge: %w", err))
		}
		out = append(out, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, persistence("registry.edges", err)
	}
	return out, nil
}

func (t *sqlTx) ListEdges(ctx context.Context) ([]DependencyEdge, error) {
	return t.queryEdges(ctx, "")
}

func (t *sqlTx) EdgesFrom(ctx context.Context, id string) ([]DependencyEdge, error) {
	return t.queryEdges(ctx, "feature_id = ?", id)
}

func (t *sqlTx) EdgesTo(ctx context.Context, id string) ([]DependencyEdge, error) {
	return t.queryEdges(ctx, "depends_on = ?", id)
}

func (t *sqlTx) UpsertEdge(ctx context.Context, e DependencyEdge) error {
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`INSERT INTO feature_dependencies (feature_id, depends_on, dependency_type, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feature_id, depends_on) DO UPDATE SET dependency_type = excluded.dependency_type`),
		e.FeatureID, e.DependsOn, string(e.Type), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return persistence("registry.edge", fmt.Errorf("upsert edge %s -> %s: %w", e.FeatureID, e.DependsOn, err))
	}
	return nil
}

func (t *sqlTx) DeleteEdge(ctx context.Context, featureID, dependsOn string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.store.rebind(`DELETE FROM feature_dependencies WHERE feature_id = ? AND depends_on = ?`),
		featureID, dependsOn)
	if err != nil {
		return false, persistence("registry.edge", fmt.Errorf("delete edge %s -> %s: %w", featureID, dependsOn, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("registry.edge", err)
	}
	return n > 0, nil
}
