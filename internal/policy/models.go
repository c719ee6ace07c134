// Package policy evaluates integration guardrails written in Rego with OPA.
// Deny rules block an integration, warn rules are surfaced but do not block.
package policy

import (
	"sort"
	"time"
)

// Input is what Rego policies receive as `input`.
type Input struct {
	Feature FeatureInput `json:"feature"`
	Context ContextInput `json:"context"`
}

// FeatureInput describes the feature being integrated.
type FeatureInput struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	FilesCreated  []string `json:"files_created"`
	FilesModified []string `json:"files_modified"`
	Migrations    []string `json:"migrations"`
}

// ContextInput carries project-wide settings.
type ContextInput struct {
	ProtectedZones []string `json:"protected_zones"`
}

// normalized returns a copy with nil slices replaced by empty ones, so rules
// iterating over them see arrays instead of null.
func (in Input) normalized() Input {
	orEmpty := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	in.Feature.FilesCreated = orEmpty(in.Feature.FilesCreated)
	in.Feature.FilesModified = orEmpty(in.Feature.FilesModified)
	in.Feature.Migrations = orEmpty(in.Feature.Migrations)
	in.Context.ProtectedZones = orEmpty(in.Context.ProtectedZones)
	return in
}

// Decision is the outcome of evaluating every loaded policy against an Input.
type Decision struct {
	DecisionID  string    `json:"decisionId"`
	Package     string    `json:"package"`
	Violations  []string  `json:"violations"`
	Warnings    []string  `json:"warnings"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Allowed reports whether no deny rule fired.
func (d *Decision) Allowed() bool {
	return len(d.Violations) == 0
}

func stringSet(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
