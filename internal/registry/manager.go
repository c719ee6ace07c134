// Package registry tracks features, their dependency graph and the
// enable/disable rules that graph implies.
//
// Every mutating operation runs its precondition check and its write inside
// one Store.Update call, so two concurrent callers never both act on the
// same stale view of the graph.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/metrics"
	"github.com/josephgoksu/TodoBuilder/internal/validation"
)

// Manager enforces the dependency rules on top of a Store.
type Manager struct {
	store        Store
	logger       *slog.Logger
	strictEnable bool
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for mutation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStrictEnable makes Enable refuse a feature whose required
// dependencies are disabled.
func WithStrictEnable(strict bool) Option {
	return func(m *Manager) { m.strictEnable = strict }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StrictEnable reports whether Enable checks required dependencies.
func (m *Manager) StrictEnable() bool { return m.strictEnable }

func (m *Manager) mutate(ctx context.Context, op string, fn func(Tx) error) error {
	err := m.store.Update(ctx, fn)
	metrics.ObserveMutation(op, err)
	if err != nil {
		m.logger.Debug("registry mutation rejected", "op", op, "error", err)
	} else {
		m.logger.Debug("registry mutation applied", "op", op)
	}
	return err
}

// Register inserts def along with its declared dependencies. An empty id is
// derived from the name.
func (m *Manager) Register(ctx context.Context, def FeatureDefinition, deps ...DependencySpec) (*FeatureDefinition, error) {
	f, edges, err := m.prepare(def, deps)
	if err != nil {
		return nil, err
	}
	err = m.mutate(ctx, "register", func(tx Tx) error {
		return m.registerTx(ctx, tx, f, edges)
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", f.ID, err)
	}
	m.logger.Info("feature registered", "id", f.ID, "dependencies", len(edges))
	return f, nil
}

func (m *Manager) prepare(def FeatureDefinition, deps []DependencySpec) (*FeatureDefinition, []DependencyEdge, error) {
	f := def.Clone()
	f.ID = strings.TrimSpace(f.ID)
	f.Name = strings.TrimSpace(f.Name)
	if f.ID == "" && f.Name == "" {
		return nil, nil, apperr.Validation("registry.register", "feature id or name is required")
	}
	if f.ID == "" {
		f.ID = Slug(f.Name)
	}
	if f.Name == "" {
		f.Name = f.ID
	}
	if err := validation.Struct("registry.register", f); err != nil {
		return nil, nil, err
	}

	edges := make([]DependencyEdge, 0, len(deps))
	for _, d := range deps {
		if err := validation.Struct("registry.register", d); err != nil {
			return nil, nil, err
		}
		typ := d.Type
		if typ == "" {
			typ = DependencyRequired
		}
		edges = append(edges, DependencyEdge{FeatureID: f.ID, DependsOn: d.DependsOn, Type: typ})
	}

	now := m.now().UTC()
	f.Revision = 1
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Components == nil {
		f.Components = []Descriptor{}
	}
	if f.APIEndpoints == nil {
		f.APIEndpoints = []Descriptor{}
	}
	if f.DatabaseMigrations == nil {
		f.DatabaseMigrations = []Descriptor{}
	}
	return f, edges, nil
}

func (m *Manager) registerTx(ctx context.Context, tx Tx, f *FeatureDefinition, edges []DependencyEdge) error {
	if err := tx.InsertFeature(ctx, f); err != nil {
		return err
	}
	for _, e := range edges {
		if err := m.addEdgeTx(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// CheckRegistration runs the checks of Register for def and deps without
// writing. Store failures are returned as errors; everything Register would
// reject is listed in the check.
func (m *Manager) CheckRegistration(ctx context.Context, def FeatureDefinition, deps ...DependencySpec) (*RegistrationCheck, error) {
	check := &RegistrationCheck{FeatureID: strings.TrimSpace(def.ID), Problems: []string{}}
	f, edges, err := m.prepare(def, deps)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindValidation {
			return nil, err
		}
		check.problem("%v", err)
		return check, nil
	}
	check.FeatureID = f.ID

	err = m.store.View(ctx, func(tx Tx) error {
		_, err := tx.GetFeature(ctx, f.ID)
		switch {
		case err == nil:
			check.problem("feature %s is already registered", f.ID)
		case !errors.Is(err, ErrFeatureNotFound):
			return err
		}

		all, err := tx.ListEdges(ctx)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.FeatureID == e.DependsOn {
				check.problem("%v: %s", ErrSelfDependency, e.FeatureID)
				continue
			}
			to, err := tx.GetFeature(ctx, e.DependsOn)
			if errors.Is(err, ErrFeatureNotFound) {
				check.problem("dependency %s is not registered", e.DependsOn)
				continue
			}
			if err != nil {
				return err
			}
			if e.Type == DependencyRequired {
				if f.Enabled && !to.Enabled {
					check.problem("%v: %s is enabled but %s is disabled", ErrDependencyDisabled, f.ID, to.ID)
				}
				if path := findPath(adjacency(all, requiredOnly), e.DependsOn, e.FeatureID); path != nil {
					check.problem("%v", &CycleError{Path: append([]string{e.FeatureID}, path...)})
					continue
				}
			}
			all = append(all, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// Get returns a single feature.
func (m *Manager) Get(ctx context.Context, id string) (*FeatureDefinition, error) {
	var f *FeatureDefinition
	err := m.store.View(ctx, func(tx Tx) error {
		var err error
		f, err = tx.GetFeature(ctx, id)
		return err
	})
	return f, err
}

// List returns every feature ordered by id.
func (m *Manager) List(ctx context.Context) ([]*FeatureDefinition, error) {
	var out []*FeatureDefinition
	err := m.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListFeatures(ctx)
		return err
	})
	return out, err
}

// Active returns the enabled features.
func (m *Manager) Active(ctx context.Context) ([]*FeatureDefinition, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*FeatureDefinition, 0, len(all))
	for _, f := range all {
		if f.Enabled {
			active = append(active, f)
		}
	}
	return active, nil
}

// Enable turns a feature on. Enabling an enabled feature writes nothing.
func (m *Manager) Enable(ctx context.Context, id string) (*FeatureDefinition, error) {
	var out *FeatureDefinition
	err := m.mutate(ctx, "enable", func(tx Tx) error {
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return err
		}
		if err := m.enableTx(ctx, tx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) enableTx(ctx context.Context, tx Tx, f *FeatureDefinition) error {
	if f.Enabled {
		return nil
	}
	if m.strictEnable {
		edges, err := tx.EdgesFrom(ctx, f.ID)
		if err != nil {
			return err
		}
		var disabled []string
		for _, e := range edges {
			if e.Type != DependencyRequired {
				continue
			}
			dep, err := tx.GetFeature(ctx, e.DependsOn)
			if err != nil {
				return err
			}
			if !dep.Enabled {
				disabled = append(disabled, dep.ID)
			}
		}
		if len(disabled) > 0 {
			return fmt.Errorf("%w: %s requires %s", ErrDependencyDisabled, f.ID, strings.Join(disabled, ", "))
		}
	}
	f.Enabled = true
	f.UpdatedAt = m.now().UTC()
	return tx.UpdateFeature(ctx, f)
}

// CanDisable lists the enabled features holding a required edge onto id.
func (m *Manager) CanDisable(ctx context.Context, id string) (DisableCheck, error) {
	var check DisableCheck
	err := m.store.View(ctx, func(tx Tx) error {
		var err error
		check, err = canDisableTx(ctx, tx, id)
		return err
	})
	return check, err
}

func canDisableTx(ctx context.Context, tx Tx, id string) (DisableCheck, error) {
	if _, err := tx.GetFeature(ctx, id); err != nil {
		return DisableCheck{}, err
	}
	edges, err := tx.EdgesTo(ctx, id)
	if err != nil {
		return DisableCheck{}, err
	}
	dependents := []string{}
	for _, e := range edges {
		if e.Type != DependencyRequired || e.FeatureID == id {
			continue
		}
		dep, err := tx.GetFeature(ctx, e.FeatureID)
		if err != nil {
			return DisableCheck{}, err
		}
		if dep.Enabled {
			dependents = append(dependents, dep.ID)
		}
	}
	return DisableCheck{CanDisable: len(dependents) == 0, DependentFeatures: dependents}, nil
}

// Disable turns a feature off if no enabled feature requires it. The check is
// evaluated in the same transaction as the write and is always returned; a
// blocked disable also returns a *DependentsError.
func (m *Manager) Disable(ctx context.Context, id string) (DisableCheck, error) {
	var check DisableCheck
	err := m.mutate(ctx, "disable", func(tx Tx) error {
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return err
		}
		check, err = m.disableTx(ctx, tx, f)
		return err
	})
	return check, err
}

func (m *Manager) disableTx(ctx context.Context, tx Tx, f *FeatureDefinition) (DisableCheck, error) {
	check, err := canDisableTx(ctx, tx, f.ID)
	if err != nil {
		return check, err
	}
	if !check.CanDisable {
		return check, &DependentsError{FeatureID: f.ID, Dependents: check.DependentFeatures, Err: ErrDisableBlocked}
	}
	if !f.Enabled {
		return check, nil
	}
	f.Enabled = false
	f.UpdatedAt = m.now().UTC()
	return check, tx.UpdateFeature(ctx, f)
}

// Remove deletes a feature and its outgoing edges. Any incoming edge,
// required or optional, blocks removal.
func (m *Manager) Remove(ctx context.Context, id string) error {
	err := m.mutate(ctx, "remove", func(tx Tx) error {
		if _, err := tx.GetFeature(ctx, id); err != nil {
			return err
		}
		edges, err := tx.EdgesTo(ctx, id)
		if err != nil {
			return err
		}
		if len(edges) > 0 {
			dependents := make([]string, 0, len(edges))
			for _, e := range edges {
				dependents = append(dependents, e.FeatureID)
			}
			return &DependentsError{FeatureID: id, Dependents: dependents, Err: ErrHasDependents}
		}
		return tx.DeleteFeature(ctx, id)
	})
	if err == nil {
		m.logger.Info("feature removed", "id", id)
	}
	return err
}

// AddDependency records that id depends on dependsOn. An empty type means
// required. An existing edge between the pair has its type replaced.
func (m *Manager) AddDependency(ctx context.Context, id, dependsOn string, typ DependencyType) (DependencyEdge, error) {
	if typ == "" {
		typ = DependencyRequired
	}
	e := DependencyEdge{FeatureID: id, DependsOn: dependsOn, Type: typ}
	err := m.mutate(ctx, "add_dependency", func(tx Tx) error {
		return m.addEdgeTx(ctx, tx, e)
	})
	if err != nil {
		return DependencyEdge{}, err
	}
	return e, nil
}

func (m *Manager) addEdgeTx(ctx context.Context, tx Tx, e DependencyEdge) error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDependency, e.Type)
	}
	if e.FeatureID == e.DependsOn {
		return fmt.Errorf("%w: %s", ErrSelfDependency, e.FeatureID)
	}
	from, err := tx.GetFeature(ctx, e.FeatureID)
	if err != nil {
		return err
	}
	to, err := tx.GetFeature(ctx, e.DependsOn)
	if err != nil {
		return err
	}

	if e.Type == DependencyRequired {
		if from.Enabled && !to.Enabled {
			return fmt.Errorf("%w: %s is enabled but %s is disabled", ErrDependencyDisabled, from.ID, to.ID)
		}
		edges, err := tx.ListEdges(ctx)
		if err != nil {
			return err
		}
		if path := findPath(adjacency(edges, requiredOnly), e.DependsOn, e.FeatureID); path != nil {
			return &CycleError{Path: append([]string{e.FeatureID}, path...)}
		}
	}
	return tx.UpsertEdge(ctx, e)
}

// RemoveDependency deletes the edge from id to dependsOn.
func (m *Manager) RemoveDependency(ctx context.Context, id, dependsOn string) error {
	return m.mutate(ctx, "remove_dependency", func(tx Tx) error {
		removed, err := tx.DeleteEdge(ctx, id, dependsOn)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s -> %s", ErrDependencyNotFound, id, dependsOn)
		}
		return nil
	})
}

// Dependencies returns the outgoing edges of id with target metadata.
func (m *Manager) Dependencies(ctx context.Context, id string) ([]ResolvedDependency, error) {
	out := []ResolvedDependency{}
	err := m.store.View(ctx, func(tx Tx) error {
		if _, err := tx.GetFeature(ctx, id); err != nil {
			return err
		}
		edges, err := tx.EdgesFrom(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range edges {
			dep, err := tx.GetFeature(ctx, e.DependsOn)
			if err != nil {
				return err
			}
			out = append(out, ResolvedDependency{
				DependsOn: dep.ID,
				Type:      e.Type,
				Name:      dep.Name,
				Version:   dep.Version,
				Enabled:   dep.Enabled,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Dependents returns the edges pointing at id.
func (m *Manager) Dependents(ctx context.Context, id string) ([]DependencyEdge, error) {
	var out []DependencyEdge
	err := m.store.View(ctx, func(tx Tx) error {
		if _, err := tx.GetFeature(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = tx.EdgesTo(ctx, id)
		return err
	})
	return out, err
}

// Update applies patch to a feature. A change of Enabled goes through the
// same rules as Enable and Disable.
func (m *Manager) Update(ctx context.Context, id string, patch FeaturePatch) (*FeatureDefinition, error) {
	if err := validation.Struct("registry.update", patch); err != nil {
		return nil, err
	}
	var out *FeatureDefinition
	err := m.mutate(ctx, "update", func(tx Tx) error {
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return err
		}
		if patch.IfRevision != nil && *patch.IfRevision != f.Revision {
			return fmt.Errorf("%w: %s is at revision %d, not %d", ErrRevisionConflict, id, f.Revision, *patch.IfRevision)
		}
		if patch.Name != nil {
			f.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Version != nil {
			f.Version = *patch.Version
		}
		if patch.Description != nil {
			f.Description = *patch.Description
		}
		if patch.Components != nil {
			f.Components = *patch.Components
		}
		if patch.APIEndpoints != nil {
			f.APIEndpoints = *patch.APIEndpoints
		}
		if patch.DatabaseMigrations != nil {
			f.DatabaseMigrations = *patch.DatabaseMigrations
		}

		if patch.Enabled != nil && *patch.Enabled != f.Enabled {
			if *patch.Enabled {
				err = m.enableTx(ctx, tx, f)
			} else {
				_, err = m.disableTx(ctx, tx, f)
			}
			if err != nil {
				return err
			}
		} else {
			f.UpdatedAt = m.now().UTC()
			if err := tx.UpdateFeature(ctx, f); err != nil {
				return err
			}
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Graph returns all features and edges with a dependency-first order.
func (m *Manager) Graph(ctx context.Context) (*Graph, error) {
	var g *Graph
	err := m.store.View(ctx, func(tx Tx) error {
		features, err := tx.ListFeatures(ctx)
		if err != nil {
			return err
		}
		edges, err := tx.ListEdges(ctx)
		if err != nil {
			return err
		}
		g, err = buildGraph(features, edges)
		return err
	})
	return g, err
}

// ApplyMigration runs a migration once and records it in the ledger.
func (m *Manager) ApplyMigration(ctx context.Context, id, up string) (bool, error) {
	applied, err := m.store.ApplyMigration(ctx, id, up)
	metrics.ObserveMutation("migrate", err)
	if err != nil {
		return false, err
	}
	if applied {
		m.logger.Info("migration applied", "id", id)
	}
	return applied, nil
}

// AppliedMigrations lists the migration ledger.
func (m *Manager) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	return m.store.AppliedMigrations(ctx)
}
