package codegen

import (
	"context"
	"encoding/json"
	"strings"
)

// ItemKind tags a batch item.
type ItemKind string

const (
	ItemComponent ItemKind = "component"
	ItemAPI       ItemKind = "api"
	ItemMigration ItemKind = "migration"
)

// Request lists everything a feature needs generated.
type Request struct {
	Components []ComponentSpec `json:"components"`
	Endpoints  []APISpec       `json:"apiEndpoints"`
	Migrations []string        `json:"migrations"`
	Options    Options         `json:"options"`
}

// Size is the number of items in the request.
func (r Request) Size() int {
	return len(r.Components) + len(r.Endpoints) + len(r.Migrations)
}

// ItemResult is the outcome of one requested item: Code on success, Err on
// failure.
type ItemResult struct {
	Kind ItemKind
	Name string
	Code *GeneratedCode
	Err  error
}

// OK reports whether the item generated.
func (r ItemResult) OK() bool {
	return r.Err == nil
}

func (r ItemResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    ItemKind       `json:"kind"`
		Name    string         `json:"name"`
		Success bool           `json:"success"`
		Code    *GeneratedCode `json:"code,omitempty"`
		Error   string         `json:"error,omitempty"`
	}{Kind: r.Kind, Name: r.Name, Success: r.OK(), Code: r.Code}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// GenerateBatch generates components, then endpoints, then migrations, one at
// a time in declaration order. A failed item never stops the batch; every
// requested item gets exactly one result.
func (g *Generator) GenerateBatch(ctx context.Context, req Request) []ItemResult {
	results := make([]ItemResult, 0, req.Size())

	for _, spec := range req.Components {
		code, err := g.GenerateComponent(ctx, spec, req.Options)
		results = append(results, ItemResult{Kind: ItemComponent, Name: spec.Name, Code: code, Err: err})
	}
	for _, spec := range req.Endpoints {
		code, err := g.GenerateAPI(ctx, spec, req.Options)
		name := strings.ToUpper(spec.Method) + " " + spec.Path
		results = append(results, ItemResult{Kind: ItemAPI, Name: name, Code: code, Err: err})
	}
	for _, desc := range req.Migrations {
		m, err := g.GenerateMigration(ctx, desc, req.Options)
		r := ItemResult{Kind: ItemMigration, Name: truncate(desc, 60), Err: err}
		if err == nil {
			r.Code = &GeneratedCode{Migrations: []Migration{*m}}
		}
		results = append(results, r)
	}
	return results
}

// Succeeded merges the code of every successful item.
func Succeeded(results []ItemResult) *GeneratedCode {
	code := &GeneratedCode{}
	for _, r := range results {
		if r.OK() {
			code.Merge(r.Code)
		}
	}
	return code
}
