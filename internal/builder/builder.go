// Package builder drives a feature from a build request to integrated code:
// generate every requested item, then integrate whatever generated.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

// DefaultHistory is how many reports Recent keeps.
const DefaultHistory = 20

// Generator produces code for a batch of items.
type Generator interface {
	GenerateBatch(ctx context.Context, req codegen.Request) []codegen.ItemResult
}

// Integrator persists generated code.
type Integrator interface {
	Integrate(ctx context.Context, code *codegen.GeneratedCode, def registry.FeatureDefinition, deps []registry.DependencySpec, opts integrator.Options) (*integrator.Result, error)
}

// DefaultVersion is the version of a built feature that names none.
const DefaultVersion = "1.0.0"

// FeatureSpec names the feature a build registers. A nil Enabled means
// enabled.
type FeatureSpec struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// Definition returns the feature to register with defaults applied.
func (s FeatureSpec) Definition() registry.FeatureDefinition {
	def := registry.FeatureDefinition{
		ID:          strings.TrimSpace(s.ID),
		Name:        strings.TrimSpace(s.Name),
		Version:     strings.TrimSpace(s.Version),
		Description: s.Description,
		Enabled:     s.Enabled == nil || *s.Enabled,
	}
	if def.ID == "" {
		def.ID = registry.Slug(def.Name)
	}
	if def.Version == "" {
		def.Version = DefaultVersion
	}
	return def
}

// Request asks for one feature to be built.
type Request struct {
	Feature      FeatureSpec               `json:"feature"`
	Dependencies []registry.DependencySpec `json:"dependencies"`
	Generation   codegen.Request           `json:"generation"`
	Integration  integrator.Options        `json:"integration"`
}

// Report is the outcome of Build, one entry per requested item.
type Report struct {
	ID          string               `json:"id"`
	FeatureID   string               `json:"featureId"`
	Items       []codegen.ItemResult `json:"items"`
	Integration *integrator.Result   `json:"integration,omitempty"`
	Success     bool                 `json:"success"`
	Errors      []string             `json:"errors"`
	Warnings    []string             `json:"warnings"`
	StartedAt   time.Time            `json:"startedAt"`
	Duration    time.Duration        `json:"duration"`
}

// Builder runs the pipeline and remembers recent reports.
type Builder struct {
	gen    Generator
	integ  Integrator
	logger *slog.Logger

	mu      sync.Mutex
	recent  []*Report
	history int
}

// New creates a Builder.
func New(gen Generator, integ Integrator, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{gen: gen, integ: integ, logger: logger, history: DefaultHistory}
}

// Build generates every requested item and integrates the ones that
// succeeded. Failed items are reported and never stop the pipeline;
// integration is skipped only when nothing generated. Success requires every
// item to generate and the integration to succeed. Store failures abort and
// are returned with the partial report.
func (b *Builder) Build(ctx context.Context, req Request) (*Report, error) {
	def := req.Feature.Definition()
	if def.ID == "" {
		return nil, apperr.Validation("builder.build", "feature id or name is required")
	}
	if req.Generation.Size() == 0 {
		return nil, apperr.Validation("builder.build", "at least one component, endpoint or migration is required")
	}

	report := &Report{
		ID:        uuid.NewString(),
		FeatureID: def.ID,
		Errors:    []string{},
		Warnings:  []string{},
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		b.remember(report)
	}()

	report.Items = b.gen.GenerateBatch(ctx, req.Generation)
	failed := 0
	for _, item := range report.Items {
		if !item.OK() {
			failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", item.Kind, item.Name, item.Err))
		}
	}

	code := codegen.Succeeded(report.Items)
	if failed == len(report.Items) || code.Empty() {
		report.Errors = append(report.Errors, "nothing was generated; integration skipped")
		b.logger.Warn("build produced no code", "feature", def.ID, "items", len(report.Items))
		return report, nil
	}

	def.Components = append(def.Components, descriptors(report.Items, codegen.ItemComponent, req.Generation.Components)...)
	def.APIEndpoints = append(def.APIEndpoints, descriptors(report.Items, codegen.ItemAPI, req.Generation.Endpoints)...)

	res, err := b.integ.Integrate(ctx, code, def, req.Dependencies, req.Integration)
	report.Integration = res
	if res != nil {
		report.Errors = append(report.Errors, res.Errors...)
		report.Warnings = append(report.Warnings, res.Warnings...)
	}
	if err != nil {
		b.logger.Error("build aborted", "feature", def.ID, "error", err)
		return report, err
	}

	report.Success = failed == 0 && res.Success
	b.logger.Info("build finished", "feature", def.ID, "success", report.Success,
		"items", len(report.Items), "failed", failed, "dryRun", req.Integration.DryRun)
	return report, nil
}

// descriptors records the specs of the items of kind that generated. Batch
// results keep declaration order within a kind.
func descriptors[T any](items []codegen.ItemResult, kind codegen.ItemKind, specs []T) []registry.Descriptor {
	out := []registry.Descriptor{}
	n := 0
	for _, item := range items {
		if item.Kind != kind {
			continue
		}
		if item.OK() && n < len(specs) {
			out = append(out, toDescriptor(specs[n]))
		}
		n++
	}
	return out
}

func toDescriptor(v any) registry.Descriptor {
	var d registry.Descriptor
	b, err := json.Marshal(v)
	if err != nil || json.Unmarshal(b, &d) != nil {
		return registry.Descriptor{}
	}
	return d
}

func (b *Builder) remember(r *Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recent = append(b.recent, r)
	if len(b.recent) > b.history {
		b.recent = b.recent[len(b.recent)-b.history:]
	}
}

// Recent returns the most recent reports, newest first.
func (b *Builder) Recent() []*Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Report, 0, len(b.recent))
	for i := len(b.recent) - 1; i >= 0; i-- {
		out = append(out, b.recent[i])
	}
	return out
}
