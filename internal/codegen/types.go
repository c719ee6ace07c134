package codegen

// PropSpec describes a component prop.
type PropSpec struct {
	Name     string `json:"name" validate:"required,nonempty"`
	Type     string `json:"type" validate:"required,nonempty"`
	Required bool   `json:"required"`
}

// ComponentSpec describes a UI component to generate.
type ComponentSpec struct {
	Name        string     `json:"name" validate:"required,nonempty,max=100"`
	Description string     `json:"description"`
	Props       []PropSpec `json:"props,omitempty" validate:"dive"`
	State       []string   `json:"state,omitempty"`
	Behaviors   []string   `json:"behaviors,omitempty"`
}

// APISpec describes an HTTP endpoint to generate.
type APISpec struct {
	Method         string         `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Path           string         `json:"path" validate:"required,startswith=/"`
	Description    string         `json:"description"`
	RequestSchema  map[string]any `json:"requestSchema,omitempty"`
	ResponseSchema map[string]any `json:"responseSchema,omitempty"`
	RequiresAuth   bool           `json:"requiresAuth"`
}

// Options steer the generated code.
type Options struct {
	Framework     string `json:"framework,omitempty" validate:"omitempty,oneof=react vue svelte next express"`
	Language      string `json:"language,omitempty" validate:"omitempty,oneof=typescript javascript"`
	TestFramework string `json:"testFramework,omitempty" validate:"omitempty,oneof=vitest jest"`
	SQLDialect    string `json:"sqlDialect,omitempty" validate:"omitempty,oneof=postgres sqlite"`
	IncludeTests  *bool  `json:"includeTests,omitempty"`
}

// Tests reports whether tests are generated. Unset means yes.
func (o Options) Tests() bool {
	return o.IncludeTests == nil || *o.IncludeTests
}

// merged fills unset fields of o from def.
func (o Options) merged(def Options) Options {
	if o.Framework == "" {
		o.Framework = def.Framework
	}
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.TestFramework == "" {
		o.TestFramework = def.TestFramework
	}
	if o.SQLDialect == "" {
		o.SQLDialect = def.SQLDialect
	}
	if o.IncludeTests == nil {
		o.IncludeTests = def.IncludeTests
	}
	return o
}

// DefaultOptions is used when the generator is built without defaults.
var DefaultOptions = Options{
	Framework:     "react",
	Language:      "typescript",
	TestFramework: "vitest",
	SQLDialect:    "postgres",
}

// GeneratedFile is one file produced by the provider.
type GeneratedFile struct {
	Path    string `json:"path" validate:"required,relpath"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"type"`
}

// Migration is a generated schema change.
type Migration struct {
	ID   string `json:"id" validate:"max=128"`
	Up   string `json:"up" validate:"required,nonempty"`
	Down string `json:"down"`
}

// GeneratedCode is the output of one or more generation calls.
type GeneratedCode struct {
	Files      []GeneratedFile `json:"files"`
	Tests      []GeneratedFile `json:"tests"`
	Migrations []Migration     `json:"migrations"`
}

// Merge appends other's artifacts to c.
func (c *GeneratedCode) Merge(other *GeneratedCode) {
	if other == nil {
		return
	}
	c.Files = append(c.Files, other.Files...)
	c.Tests = append(c.Tests, other.Tests...)
	c.Migrations = append(c.Migrations, other.Migrations...)
}

// Empty reports whether c holds no artifacts.
func (c *GeneratedCode) Empty() bool {
	return c == nil || len(c.Files)+len(c.Tests)+len(c.Migrations) == 0
}

// codeResponse is the JSON document the provider must return for
// components and endpoints.
type codeResponse struct {
	Files []GeneratedFile `json:"files" validate:"required,min=1,dive"`
	Tests []GeneratedFile `json:"tests" validate:"dive"`
}
