package registry

import "context"

// Store persists feature definitions, dependency edges and the migration ledger.
//
// Update runs fn in a read-write transaction. Implementations serialize
// Update calls against each other so that a check made inside fn still holds
// when fn's writes commit; nothing fn wrote is visible if it returns an error.
type Store interface {
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(Tx) error) error

	// Update runs fn in a serialized read-write transaction.
	Update(ctx context.Context, fn func(Tx) error) error

	// ApplyMigration executes up once per id and records it in the ledger.
	// It reports false when id was already applied.
	ApplyMigration(ctx context.Context, id, up string) (bool, error)

	// AppliedMigrations lists the ledger in application order.
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)

	Close() error
}

// Tx is the set of operations available inside View and Update.
type Tx interface {
	// GetFeature returns ErrFeatureNotFound when id is unknown.
	GetFeature(ctx context.Context, id string) (*FeatureDefinition, error)
	// ListFeatures returns every feature ordered by id.
	ListFeatures(ctx context.Context) ([]*FeatureDefinition, error)
	// InsertFeature returns ErrDuplicateFeature when the id exists.
	InsertFeature(ctx context.Context, f *FeatureDefinition) error
	// UpdateFeature writes f if the stored revision equals f.Revision and
	// then increments f.Revision. A stale revision yields ErrRevisionConflict.
	UpdateFeature(ctx context.Context, f *FeatureDefinition) error
	// DeleteFeature removes the feature and its outgoing edges.
	DeleteFeature(ctx context.Context, id string) error

	// ListEdges returns every edge ordered by (featureId, dependsOn).
	ListEdges(ctx context.Context) ([]DependencyEdge, error)
	// EdgesFrom returns the outgoing edges of id.
	EdgesFrom(ctx context.Context, id string) ([]DependencyEdge, error)
	// EdgesTo returns the edges pointing at id.
	EdgesTo(ctx context.Context, id string) ([]DependencyEdge, error)
	// UpsertEdge inserts the edge or replaces the type of an existing one.
	UpsertEdge(ctx context.Context, e DependencyEdge) error
	// DeleteEdge reports whether an edge was removed.
	DeleteEdge(ctx context.Context, featureID, dependsOn string) (bool, error)
}
