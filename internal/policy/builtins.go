package policy

import (
	"bytes"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/types"
	"github.com/spf13/afero"
)

// Builtins exposes the project tree to policies through custom functions.
// Functions are bound per query, so engines over different roots never share
// state.
type Builtins struct {
	Fs   afero.Fs
	Root string
}

// todobuilder.file_exists(path) -> boolean
var fileExistsFn = &rego.Function{
	Name:    "todobuilder.file_exists",
	Decl:    types.NewFunction(types.Args(types.S), types.B),
	Memoize: true,
}

// todobuilder.file_line_count(path) -> number, -1 when the file is missing
var fileLineCountFn = &rego.Function{
	Name:    "todobuilder.file_line_count",
	Decl:    types.NewFunction(types.Args(types.S), types.N),
	Memoize: true,
}

func (b Builtins) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.Root, filepath.FromSlash(path))
}

func (b Builtins) fileExists(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
	path, ok := a.Value.(ast.String)
	if !ok {
		return ast.BooleanTerm(false), nil
	}
	exists, err := afero.Exists(b.Fs, b.resolve(string(path)))
	return ast.BooleanTerm(err == nil && exists), nil
}

func (b Builtins) fileLineCount(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
	path, ok := a.Value.(ast.String)
	if !ok {
		return ast.IntNumberTerm(-1), nil
	}
	data, err := afero.ReadFile(b.Fs, b.resolve(string(path)))
	if err != nil {
		return ast.IntNumberTerm(-1), nil
	}
	n := bytes.Count(data, []byte("\n"))
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return ast.IntNumberTerm(n), nil
}

// options binds the functions to a rego query.
func (b Builtins) options() []func(*rego.Rego) {
	return []func(*rego.Rego){
		rego.Function1(fileExistsFn, b.fileExists),
		rego.Function1(fileLineCountFn, b.fileLineCount),
	}
}

// declarations lets a compiler type-check modules that call the functions.
func (b Builtins) declarations() map[string]*ast.Builtin {
	return map[string]*ast.Builtin{
		fileExistsFn.Name:    {Name: fileExistsFn.Name, Decl: fileExistsFn.Decl},
		fileLineCountFn.Name: {Name: fileLineCountFn.Name, Decl: fileLineCountFn.Decl},
	}
}

// forTester adapts the functions for the OPA test runner.
func (b Builtins) forTester() []*tester.Builtin {
	decls := b.declarations()
	return []*tester.Builtin{
		{Decl: decls[fileExistsFn.Name], Func: rego.Function1(fileExistsFn, b.fileExists)},
		{Decl: decls[fileLineCountFn.Name], Func: rego.Function1(fileLineCountFn, b.fileLineCount)},
	}
}

// BuiltinNames lists the custom functions available to policies.
func BuiltinNames() []string {
	return []string{fileExistsFn.Name, fileLineCountFn.Name}
}
