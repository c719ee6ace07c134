package integrator

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/policy"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

// Check is the outcome of an integrability check.
type Check struct {
	CanIntegrate bool     `json:"canIntegrate"`
	Conflicts    []string `json:"conflicts"`
	Warnings     []string `json:"warnings"`
	// Planned writes, project-relative: new paths and overwritten paths.
	Creates    []string `json:"filesCreated"`
	Overwrites []string `json:"filesModified"`

	paths []plannedFile
}

type plannedFile struct {
	rel     string
	content string
	test    bool
	exists  bool
}

func (c *Check) conflict(format string, args ...any) {
	c.Conflicts = append(c.Conflicts, fmt.Sprintf(format, args...))
}

func (c *Check) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// CanIntegrate reports whether code can be integrated as featureID without
// writing anything. Only store and policy failures are returned as errors;
// everything else lands in Conflicts or Warnings.
func (i *Integrator) CanIntegrate(ctx context.Context, featureID string, code *codegen.GeneratedCode) (*Check, error) {
	return i.check(ctx, registry.FeatureDefinition{ID: featureID}, nil, code)
}

// check covers the planned writes and the registration of def with deps.
func (i *Integrator) check(ctx context.Context, def registry.FeatureDefinition, deps []registry.DependencySpec, code *codegen.GeneratedCode) (*Check, error) {
	featureID := strings.TrimSpace(def.ID)
	if featureID == "" {
		return nil, apperr.Validation("integrator.check", "feature id is required")
	}
	def.ID = featureID
	if code == nil {
		code = &codegen.GeneratedCode{}
	}
	c := &Check{Conflicts: []string{}, Warnings: []string{}, Creates: []string{}, Overwrites: []string{}}

	reg, err := i.registry.CheckRegistration(ctx, def, deps...)
	if err != nil {
		return nil, err
	}
	c.Conflicts = append(c.Conflicts, reg.Problems...)

	features, err := i.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]*registry.FeatureDefinition)
	for _, f := range features {
		if f.ID == featureID {
			continue
		}
		for _, p := range f.Files {
			owners[p] = f
		}
	}

	seen := make(map[string]bool)
	add := func(f codegen.GeneratedFile, test bool) error {
		rel, err := codegen.CleanPath(f.Path)
		if err != nil {
			c.conflict("invalid path: %v", err)
			return nil
		}
		if seen[rel] {
			c.conflict("%s is generated more than once", rel)
			return nil
		}
		seen[rel] = true

		existing, exists, err := i.read(rel)
		if apperr.Is(err, apperr.KindConflict) {
			c.conflict("%s is a directory", rel)
			return nil
		}
		if err != nil {
			return err
		}
		identical := exists && bytes.Equal(existing, []byte(f.Content))
		if owner, ok := owners[rel]; ok {
			switch {
			case identical:
				c.warn("%s is identical to the file owned by %s", rel, owner.ID)
			case owner.Enabled:
				c.conflict("%s is owned by enabled feature %s", rel, owner.ID)
			default:
				c.warn("%s is owned by disabled feature %s and will be replaced", rel, owner.ID)
			}
		} else if exists && !identical {
			c.warn("existing file %s will be overwritten", rel)
		}

		c.paths = append(c.paths, plannedFile{rel: rel, content: f.Content, test: test, exists: exists})
		if exists {
			c.Overwrites = append(c.Overwrites, rel)
		} else {
			c.Creates = append(c.Creates, rel)
		}
		return nil
	}
	for _, f := range code.Files {
		if err := add(f, false); err != nil {
			return nil, err
		}
	}
	for _, f := range code.Tests {
		if err := add(f, true); err != nil {
			return nil, err
		}
	}

	if i.policy != nil {
		in := policy.Input{Feature: policy.FeatureInput{
			ID:            featureID,
			Name:          def.Name,
			FilesCreated:  c.Creates,
			FilesModified: c.Overwrites,
		}}
		for _, m := range code.Migrations {
			in.Feature.Migrations = append(in.Feature.Migrations, m.Up)
		}
		decision, err := i.policy.Evaluate(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("policy check: %w", err)
		}
		for _, v := range decision.Violations {
			c.conflict("policy: %s", v)
		}
		for _, w := range decision.Warnings {
			c.warn("policy: %s", w)
		}
	}

	c.CanIntegrate = len(c.Conflicts) == 0
	return c, nil
}

// read returns the current content of a project file.
func (i *Integrator) read(rel string) ([]byte, bool, error) {
	full := i.abs(rel)
	exists, err := afero.Exists(i.fs, full)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !exists {
		return nil, false, nil
	}
	isDir, err := afero.IsDir(i.fs, full)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", rel, err)
	}
	if isDir {
		return nil, false, apperr.Wrap(apperr.KindConflict, "integrator.check", fmt.Errorf("%s is a directory", rel))
	}
	data, err := afero.ReadFile(i.fs, full)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, true, nil
}

func (i *Integrator) abs(rel string) string {
	return filepath.Join(i.root, filepath.FromSlash(rel))
}
