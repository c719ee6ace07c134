package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var errReadOnly = errors.New("write attempted in read-only transaction")

type edgeKey struct {
	from, to string
}

type memState struct {
	features   map[string]*FeatureDefinition
	edges      map[edgeKey]DependencyType
	migrations []AppliedMigration
}

func (s *memState) clone() *memState {
	c := &memState{
		features:   make(map[string]*FeatureDefinition, len(s.features)),
		edges:      make(map[edgeKey]DependencyType, len(s.edges)),
		migrations: append([]AppliedMigration(nil), s.migrations...),
	}
	for id, f := range s.features {
		c.features[id] = f.Clone()
	}
	for k, v := range s.edges {
		c.edges[k] = v
	}
	return c
}

// MemoryStore keeps the registry in process memory. Update works on a copy of
// the state and swaps it in only when fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			features: make(map[string]*FeatureDefinition),
			edges:    make(map[edgeKey]DependencyType),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{state: s.state, readOnly: true})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&memTx{state: next}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// ApplyMigration records id in the ledger. There is no SQL engine behind the
// memory store, so up is not executed.
func (s *MemoryStore) ApplyMigration(ctx context.Context, id, up string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.state.migrations {
		if m.ID == id {
			return false, nil
		}
	}
	s.state.migrations = append(s.state.migrations, AppliedMigration{ID: id, AppliedAt: s.now().UTC()})
	return true, nil
}

func (s *MemoryStore) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AppliedMigration(nil), s.state.migrations...), nil
}

func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) GetFeature(_ context.Context, id string) (*FeatureDefinition, error) {
	f, ok := t.state.features[id]
	if !ok {
		return nil, notFound(id)
	}
	return f.Clone(), nil
}

func (t *memTx) ListFeatures(_ context.Context) ([]*FeatureDefinition, error) {
	out := make([]*FeatureDefinition, 0, len(t.state.features))
	for _, f := range t.state.features {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertFeature(_ context.Context, f *FeatureDefinition) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.state.features[f.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.ID)
	}
	t.state.features[f.ID] = f.Clone()
	return nil
}

func (t *memTx) UpdateFeature(_ context.Context, f *FeatureDefinition) error {
	if t.readOnly {
		return errReadOnly
	}
	cur, ok := t.state.features[f.ID]
	if !ok {
		return notFound(f.ID)
	}
	if cur.Revision != f.Revision {
		return fmt.Errorf("%w: %s at revision %d, have %d", ErrRevisionConflict, f.ID, cur.Revision, f.Revision)
	}
	f.Revision++
	t.state.features[f.ID] = f.Clone()
	return nil
}

func (t *memTx) DeleteFeature(_ context.Context, id string) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.state.features[id]; !ok {
		return notFound(id)
	}
	delete(t.state.features, id)
	for k := range t.state.edges {
		if k.from == id {
			delete(t.state.edges, k)
		}
	}
	return nil
}

func (t *memTx) edges(match func(edgeKey) bool) []DependencyEdge {
	out := []DependencyEdge{}
	for k, typ := range t.state.edges {
		if match(k) {
			out = append(out, DependencyEdge{FeatureID: k.from, DependsOn: k.to, Type: typ})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FeatureID != out[j].FeatureID {
			return out[i].FeatureID < out[j].FeatureID
		}
		return out[i].DependsOn < out[j].DependsOn
	})
	return out
}

func (t *memTx) ListEdges(_ context.Context) ([]DependencyEdge, error) {
	return t.edges(func(edgeKey) bool { return true }), nil
}

func (t *memTx) EdgesFrom(_ context.Context, id string) ([]DependencyEdge, error) {
	return t.edges(func(k edgeKey) bool { return k.from == id }), nil
}

func (t *memTx) EdgesTo(_ context.Context, id string) ([]DependencyEdge, error) {
	return t.edges(func(k edgeKey) bool { return k.to == id }), nil
}

func (t *memTx) UpsertEdge(_ context.Context, e DependencyEdge) error {
	if t.readOnly {
		return errReadOnly
	}
	t.state.edges[edgeKey{from: e.FeatureID, to: e.DependsOn}] = e.Type
	return nil
}

func (t *memTx) DeleteEdge(_ context.Context, featureID, dependsOn string) (bool, error) {
	if t.readOnly {
		return false, errReadOnly
	}
	k := edgeKey{from: featureID, to: dependsOn}
	if _, ok := t.state.edges[k]; !ok {
		return false, nil
	}
	delete(t.state.edges, k)
	return true, nil
}
