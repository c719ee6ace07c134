package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
	"github.com/spf13/afero"
)

// TestResult is the outcome of one Rego test rule.
type TestResult struct {
	Name     string        `json:"name"`
	Package  string        `json:"package"`
	Passed   bool          `json:"passed"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Output   []string      `json:"output,omitempty"`
}

// TestSummary aggregates a test run.
type TestSummary struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
	Results  []*TestResult `json:"results"`
}

// TestRunner runs `test_` rules found in the policy directory together with
// the built-in policy.
type TestRunner struct {
	fs          afero.Fs
	policiesDir string
	builtins    Builtins
}

// NewTestRunner creates a runner over policiesDir; projectRoot backs the
// custom built-ins.
func NewTestRunner(fs afero.Fs, policiesDir, projectRoot string) *TestRunner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TestRunner{
		fs:          fs,
		policiesDir: policiesDir,
		builtins:    Builtins{Fs: fs, Root: projectRoot},
	}
}

// Run executes every test rule.
func (r *TestRunner) Run(ctx context.Context) (*TestSummary, error) {
	start := time.Now()

	modules, err := r.loadModules()
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}

	compiler := ast.NewCompiler().WithBuiltins(r.builtins.declarations())
	compiler.Compile(modules)
	if compiler.Failed() {
		var msgs []string
		for _, err := range compiler.Errors {
			msgs = append(msgs, err.Error())
		}
		return nil, fmt.Errorf("compile policies: %s", strings.Join(msgs, "; "))
	}

	runner := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		AddCustomBuiltins(r.builtins.forTester()).
		EnableTracing(true).
		SetTimeout(30 * time.Second)

	ch, err := runner.RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	summary := &TestSummary{Results: []*TestResult{}}
	for tr := range ch {
		res := &TestResult{Name: tr.Name, Package: tr.Package, Duration: tr.Duration}
		switch {
		case tr.Skip:
			res.Skipped = true
			summary.Skipped++
		case tr.Error != nil:
			res.Error = tr.Error.Error()
			summary.Errored++
		case tr.Fail:
			res.Failed = true
			summary.Failed++
		default:
			res.Passed = true
			summary.Passed++
		}
		for _, evt := range tr.Trace {
			if evt.Op == topdown.NoteOp && evt.Message != "" {
				res.Output = append(res.Output, evt.Message)
			}
		}
		summary.Total++
		summary.Results = append(summary.Results, res)
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

func (r *TestRunner) loadModules() (map[string]*ast.Module, error) {
	modules := make(map[string]*ast.Module)

	files, err := NewLoader(r.fs, r.policiesDir).LoadAll()
	if err != nil {
		return nil, err
	}
	overridden := false
	for _, f := range files {
		if filepath.Base(f.Path) == DefaultPolicyFile {
			overridden = true
		}
	}
	if !overridden {
		builtin, err := ast.ParseModule(DefaultPolicyFile, DefaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("parse built-in policy: %w", err)
		}
		modules["builtin/"+DefaultPolicyFile] = builtin
	}

	for _, f := range files {
		rel, err := filepath.Rel(r.policiesDir, f.Path)
		if err != nil || rel == "" {
			rel = f.Path
		}
		m, err := ast.ParseModule(rel, f.Content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", rel, err)
		}
		modules[rel] = m
	}
	return modules, nil
}

// FormatSummary renders a one-line summary.
func (s *TestSummary) FormatSummary() string {
	if s.Total == 0 {
		return "No tests found.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tests, %d passed", s.Total, s.Passed)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", s.Failed)
	}
	if s.Errored > 0 {
		fmt.Fprintf(&sb, ", %d errored", s.Errored)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(&sb, " in %s\n", s.Duration.Round(time.Millisecond))
	return sb.String()
}

// AllPassed reports whether nothing failed or errored.
func (s *TestSummary) AllPassed() bool {
	return s.Failed == 0 && s.Errored == 0
}
