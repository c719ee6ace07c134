package registry

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DependencyType distinguishes blocking from informational edges.
type DependencyType string

const (
	DependencyRequired DependencyType = "required"
	DependencyOptional DependencyType = "optional"
)

// Valid reports whether t is a known dependency type.
func (t DependencyType) Valid() bool {
	return t == DependencyRequired || t == DependencyOptional
}

// Descriptor is an opaque component, endpoint or migration entry.
type Descriptor map[string]any

// FeatureDefinition is a named, versioned, enable-able unit of functionality.
type FeatureDefinition struct {
	ID                 string       `json:"id" yaml:"id" validate:"required,max=128,featureid"`
	Name               string       `json:"name" yaml:"name" validate:"required,max=200"`
	Version            string       `json:"version" yaml:"version" validate:"max=64"`
	Description        string       `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled            bool         `json:"enabled" yaml:"enabled"`
	Components         []Descriptor `json:"components" yaml:"components"`
	APIEndpoints       []Descriptor `json:"apiEndpoints" yaml:"apiEndpoints"`
	DatabaseMigrations []Descriptor `json:"databaseMigrations" yaml:"databaseMigrations"`
	// Files lists the project-relative paths written when the feature was integrated.
	Files     []string  `json:"files,omitempty" yaml:"files,omitempty"`
	Revision  int64     `json:"revision" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Clone returns a deep copy.
func (f *FeatureDefinition) Clone() *FeatureDefinition {
	if f == nil {
		return nil
	}
	c := *f
	c.Components = cloneDescriptors(f.Components)
	c.APIEndpoints = cloneDescriptors(f.APIEndpoints)
	c.DatabaseMigrations = cloneDescriptors(f.DatabaseMigrations)
	if f.Files != nil {
		c.Files = append([]string(nil), f.Files...)
	}
	return &c
}

func cloneDescriptors(in []Descriptor) []Descriptor {
	if in == nil {
		return nil
	}
	out := make([]Descriptor, len(in))
	for i, d := range in {
		cp := make(Descriptor, len(d))
		for k, v := range d {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// DependencyEdge states that FeatureID depends on DependsOn.
type DependencyEdge struct {
	FeatureID string         `json:"featureId" yaml:"featureId"`
	DependsOn string         `json:"dependsOn" yaml:"dependsOn"`
	Type      DependencyType `json:"dependencyType" yaml:"type"`
}

// DependencySpec declares an outgoing edge at registration time.
type DependencySpec struct {
	DependsOn string         `json:"dependsOn" yaml:"dependsOn" validate:"required"`
	Type      DependencyType `json:"type" yaml:"type" validate:"omitempty,oneof=required optional"`
}

// ResolvedDependency is an outgoing edge with the target's metadata.
type ResolvedDependency struct {
	DependsOn string         `json:"dependsOn"`
	Type      DependencyType `json:"dependencyType"`
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Enabled   bool           `json:"enabled"`
}

// RegistrationCheck lists why Register would reject a definition. No
// problems means the definition was acceptable when the check ran.
type RegistrationCheck struct {
	FeatureID string   `json:"featureId"`
	Problems  []string `json:"problems"`
}

// OK reports whether no problem was found.
func (c *RegistrationCheck) OK() bool { return len(c.Problems) == 0 }

func (c *RegistrationCheck) problem(format string, args ...any) {
	c.Problems = append(c.Problems, fmt.Sprintf(format, args...))
}

// DisableCheck is the outcome of a disable precondition check.
type DisableCheck struct {
	CanDisable        bool     `json:"canDisable"`
	DependentFeatures []string `json:"dependentFeatures"`
}

// FeaturePatch holds the mutable fields of a feature; nil fields are left as-is.
// A non-nil IfRevision makes the update fail with ErrRevisionConflict unless
// the stored revision matches.
type FeaturePatch struct {
	IfRevision         *int64        `json:"ifRevision,omitempty"`
	Name               *string       `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Version            *string       `json:"version,omitempty" validate:"omitempty,max=64"`
	Description        *string       `json:"description,omitempty"`
	Enabled            *bool         `json:"enabled,omitempty"`
	Components         *[]Descriptor `json:"components,omitempty"`
	APIEndpoints       *[]Descriptor `json:"apiEndpoints,omitempty"`
	DatabaseMigrations *[]Descriptor `json:"databaseMigrations,omitempty"`
}

// GraphNode is a feature as seen by the dependency graph.
type GraphNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Graph is the whole dependency graph. Order lists feature ids so that every
// feature appears after its required dependencies.
type Graph struct {
	Nodes []GraphNode      `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
	Order []string         `json:"order"`
}

// AppliedMigration is a row of the migration ledger.
type AppliedMigration struct {
	ID        string    `json:"id"`
	AppliedAt time.Time `json:"appliedAt"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a feature id from a display name.
func Slug(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
