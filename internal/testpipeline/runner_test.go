package testpipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
)

const vitestReport = `{
  "numPassedTests": 3,
  "numFailedTests": 1,
  "numPendingTests": 1,
  "testResults": [
    {
      "name": "/tmp/x/src/TodoList.test.tsx",
      "status": "failed",
      "message": "",
      "assertionResults": [
        {"fullName": "TodoList renders", "status": "passed", "failureMessages": []},
        {"fullName": "TodoList adds a todo", "status": "failed", "failureMessages": ["AssertionError: expected 2 to be 3\n    at stack"]}
      ]
    },
    {"name": "/tmp/x/src/Broken.test.tsx", "status": "failed", "message": "SyntaxError: Unexpected token\nmore", "assertionResults": []}
  ]
}`

func TestParseReport(t *testing.T) {
	r, err := parseReport([]byte(vitestReport))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Passed)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, []string{
		"TodoList adds a todo: AssertionError: expected 2 to be 3",
		"Broken.test.tsx: SyntaxError: Unexpected token",
	}, r.Failures)

	_, err = parseReport([]byte("not json"))
	assert.Equal(t, apperr.KindTestRunner, apperr.KindOf(err))
}

func TestReadCoverage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.json", []byte(`{"total":{"lines":{"total":10,"covered":8,"pct":80}}}`), 0o644))
	got, err := readCoverage(fs, "/c.json")
	require.NoError(t, err)
	assert.Equal(t, 80.0, got)

	require.NoError(t, afero.WriteFile(fs, "/empty.json", []byte(`{"total":{}}`), 0o644))
	_, err = readCoverage(fs, "/empty.json")
	assert.Error(t, err)
}

func shellRunner(t *testing.T, script string) *CommandRunner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewCommandRunner(afero.NewOsFs(), t.TempDir(), CommandConfig{
		Command:      []string{"sh", "-c", script, "runner", ReportPlaceholder},
		CoverageArgs: []string{},
	}, nil)
}

func TestCommandRunner_WritesWorkspaceAndParsesReport(t *testing.T) {
	// $1 is the report path, the remaining args are the test files.
	script := `shift_report="$1"; shift; for f in "$@"; do test -f "$f" || exit 3; done; ` +
		`test -f src/TodoList.tsx || exit 4; ` +
		`printf '{"numPassedTests":%d,"numFailedTests":0,"numPendingTests":0,"testResults":[]}' "$#" > "$shift_report"`
	r := shellRunner(t, script)

	report, err := r.Run(context.Background(), Run{
		Category: CategoryUnit,
		Sources:  []codegen.GeneratedFile{{Path: "src/TodoList.tsx", Content: "export {}"}},
		Tests: []codegen.GeneratedFile{
			{Path: "src/TodoList.test.tsx", Content: "test()"},
			{Path: "src/other.test.tsx", Content: "test()"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)

	entries, err := os.ReadDir(r.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory is removed")
}

func TestCommandRunner_FailingSuiteStillReports(t *testing.T) {
	r := shellRunner(t, `printf '{"numPassedTests":0,"numFailedTests":2}' > "$1"; exit 1`)
	report, err := r.Run(context.Background(), Run{Category: CategoryUnit})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
}

func TestCommandRunner_CommandFailure(t *testing.T) {
	r := shellRunner(t, `echo "vitest: command not found" >&2; exit 127`)
	_, err := r.Run(context.Background(), Run{Category: CategoryUnit})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTestRunner, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "command not found")
}

func TestCommandRunner_RejectsEscapingPaths(t *testing.T) {
	r := shellRunner(t, `exit 0`)
	_, err := r.Run(context.Background(), Run{
		Category: CategoryUnit,
		Tests:    []codegen.GeneratedFile{{Path: "../outside.test.ts", Content: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(r.root), "outside.test.ts"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommandRunner_Coverage(t *testing.T) {
	script := `mkdir -p coverage; printf '{"total":{"lines":{"pct":75.5}}}' > coverage/coverage-summary.json; ` +
		`printf '{"numPassedTests":1}' > "$1"`
	r := shellRunner(t, script)
	report, err := r.Run(context.Background(), Run{Category: CategoryUnit, Coverage: true})
	require.NoError(t, err)
	require.NotNil(t, report.Coverage)
	assert.Equal(t, 75.5, *report.Coverage)
}
