package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Fs is used to load policies and by the custom built-ins. Defaults to
	// the OS filesystem.
	Fs afero.Fs
	// ProjectRoot resolves relative paths in built-ins.
	ProjectRoot string
	// Dir holds user .rego files. Empty means built-in policy only.
	Dir string
	// Package is the Rego package queried; defaults to DefaultPackage.
	Package string
	// ProtectedZones are glob patterns passed to policies as
	// input.context.protected_zones.
	ProtectedZones []string
	// SkipDefault leaves out the built-in policy.
	SkipDefault bool
}

// Engine evaluates deny and warn rules of one Rego package. Evaluation is
// local; no bundle or decision-log endpoints are contacted.
type Engine struct {
	mu       sync.RWMutex
	cfg      EngineConfig
	policies []*File
	query    *rego.PreparedEvalQuery
}

// NewEngine loads the policies and prepares the query.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	e := &Engine{cfg: cfg}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the policy directory and re-prepares the query. On error
// the previous policies stay in effect.
func (e *Engine) Reload(ctx context.Context) error {
	var policies []*File
	if !e.cfg.SkipDefault {
		policies = append(policies, &File{Path: DefaultPolicyFile, Name: "integration", Content: DefaultPolicy})
	}
	if e.cfg.Dir != "" {
		loaded, err := NewLoader(e.cfg.Fs, e.cfg.Dir).LoadAll()
		if err != nil {
			return fmt.Errorf("load policies: %w", err)
		}
		for _, f := range loaded {
			// A user file with the default name replaces the built-in one.
			if f.Name == "integration" && !e.cfg.SkipDefault {
				policies[0] = f
				continue
			}
			policies = append(policies, f)
		}
	}

	var query *rego.PreparedEvalQuery
	if len(policies) > 0 {
		opts := []func(*rego.Rego){rego.Query("result = data." + e.cfg.Package)}
		for _, p := range policies {
			opts = append(opts, rego.Module(p.Path, p.Content))
		}
		opts = append(opts, Builtins{Fs: e.cfg.Fs, Root: e.cfg.ProjectRoot}.options()...)
		pq, err := rego.New(opts...).PrepareForEval(ctx)
		if err != nil {
			return fmt.Errorf("compile policies: %w", err)
		}
		query = &pq
	}

	e.mu.Lock()
	e.policies = policies
	e.query = query
	e.mu.Unlock()
	return nil
}

// PolicyNames returns the names of the loaded policies.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// ProtectedZones returns the configured zones.
func (e *Engine) ProtectedZones() []string {
	return e.cfg.ProtectedZones
}

// Evaluate runs the deny and warn rules against in. Protected zones from the
// engine config are merged into the input context.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*Decision, error) {
	in.Context.ProtectedZones = append(append([]string{}, e.cfg.ProtectedZones...), in.Context.ProtectedZones...)
	decision := &Decision{
		DecisionID:  uuid.NewString(),
		Package:     e.cfg.Package,
		Violations:  []string{},
		Warnings:    []string{},
		EvaluatedAt: time.Now().UTC(),
	}

	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()
	if query == nil {
		return decision, nil
	}

	input, err := toValue(in.normalized())
	if err != nil {
		return nil, err
	}
	rs, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluate policies: %w", err)
	}
	if len(rs) == 0 {
		// Package undefined: none of the loaded files declare it.
		return decision, nil
	}
	doc, _ := rs[0].Bindings["result"].(map[string]any)
	decision.Violations = stringSet(doc["deny"])
	decision.Warnings = stringSet(doc["warn"])
	return decision, nil
}

// toValue converts in to the plain JSON shape OPA expects.
func toValue(in Input) (map[string]any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	return v, nil
}

// ValidatePolicy reports whether content is a compilable Rego module.
func ValidatePolicy(ctx context.Context, name, content string) error {
	opts := []func(*rego.Rego){rego.Query("data"), rego.Module(name, content)}
	opts = append(opts, Builtins{Fs: afero.NewMemMapFs()}.options()...)
	if _, err := rego.New(opts...).PrepareForEval(ctx); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
