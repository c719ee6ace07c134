package registry

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

// Manifest is a YAML document declaring features to register.
//
//	features:
//	  - id: base
//	    name: Base
//	  - id: priority
//	    name: Priority
//	    dependencies:
//	      - dependsOn: base
//	        type: required
type Manifest struct {
	Features []ManifestFeature `yaml:"features"`
}

// ManifestFeature is one manifest entry. Enabled defaults to true.
type ManifestFeature struct {
	ID                 string           `yaml:"id"`
	Name               string           `yaml:"name"`
	Version            string           `yaml:"version"`
	Description        string           `yaml:"description"`
	Enabled            *bool            `yaml:"enabled"`
	Components         []Descriptor     `yaml:"components"`
	APIEndpoints       []Descriptor     `yaml:"apiEndpoints"`
	DatabaseMigrations []Descriptor     `yaml:"databaseMigrations"`
	Dependencies       []DependencySpec `yaml:"dependencies"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var mf Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		if err == io.EOF {
			return &mf, nil
		}
		return nil, apperr.Validation("registry.manifest", fmt.Sprintf("decode manifest: %v", err))
	}
	return &mf, nil
}

// Import registers every manifest feature in one transaction. Entries are
// ordered so that each one follows the manifest features it requires;
// optional edges are added once every entry exists, so they may point
// forward or form cycles.
func (m *Manager) Import(ctx context.Context, mf *Manifest) ([]*FeatureDefinition, error) {
	type prepared struct {
		def      *FeatureDefinition
		required []DependencyEdge
	}

	byID := make(map[string]prepared, len(mf.Features))
	ids := make([]string, 0, len(mf.Features))
	var requiredEdges, optionalEdges []DependencyEdge
	for i, entry := range mf.Features {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		def, edges, err := m.prepare(FeatureDefinition{
			ID:                 entry.ID,
			Name:               entry.Name,
			Version:            entry.Version,
			Description:        entry.Description,
			Enabled:            enabled,
			Components:         entry.Components,
			APIEndpoints:       entry.APIEndpoints,
			DatabaseMigrations: entry.DatabaseMigrations,
		}, entry.Dependencies)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("manifest entry %d: %w: %s", i, ErrDuplicateFeature, def.ID)
		}
		p := prepared{def: def}
		for _, e := range edges {
			if requiredOnly(e) {
				p.required = append(p.required, e)
				requiredEdges = append(requiredEdges, e)
			} else {
				optionalEdges = append(optionalEdges, e)
			}
		}
		byID[def.ID] = p
		ids = append(ids, def.ID)
	}

	order, err := topologicalOrder(ids, adjacency(requiredEdges, requiredOnly))
	if err != nil {
		return nil, fmt.Errorf("order manifest: %w", err)
	}

	out := make([]*FeatureDefinition, 0, len(order))
	err = m.mutate(ctx, "import", func(tx Tx) error {
		out = out[:0]
		for _, id := range order {
			p := byID[id]
			if err := m.registerTx(ctx, tx, p.def, p.required); err != nil {
				return fmt.Errorf("register %s: %w", id, err)
			}
			out = append(out, p.def)
		}
		for _, e := range optionalEdges {
			if err := m.addEdgeTx(ctx, tx, e); err != nil {
				return fmt.Errorf("register %s: %w", e.FeatureID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("manifest imported", "features", len(out))
	return out, nil
}
