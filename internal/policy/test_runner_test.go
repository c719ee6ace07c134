package policy

import (
	"context"
	"testing"

	"github.com/spf13/afero"
)

func TestLoader_LoadAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/data/policies/zones.rego", []byte("package todobuilder.integration"), 0o644)
	_ = afero.WriteFile(fs, "/data/policies/security/secrets.rego", []byte("package todobuilder.integration"), 0o644)
	_ = afero.WriteFile(fs, "/data/policies/README.md", []byte("# Policies"), 0o644)

	files, err := NewLoader(fs, "/data/policies").LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("LoadAll() returned %d files, want 2", len(files))
	}
	if files[0].Name != "secrets" || files[1].Name != "zones" {
		t.Errorf("unexpected order: %s, %s", files[0].Name, files[1].Name)
	}

	missing, err := NewLoader(fs, "/nowhere").LoadAll()
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir: files = %v, err = %v", missing, err)
	}
}

func TestLoader_WriteDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLoader(fs, "/data/policies")

	wrote, err := l.WriteDefault()
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() = %v, %v", wrote, err)
	}
	wrote, err = l.WriteDefault()
	if err != nil || wrote {
		t.Errorf("second WriteDefault() = %v, %v; want no overwrite", wrote, err)
	}
}

func TestTestRunner_Run(t *testing.T) {
	fs := afero.NewMemMapFs()
	tests := `package todobuilder.integration

import rego.v1

test_env_file_denied if {
	count(deny) > 0 with input as {"feature": {"files_created": [".env"], "files_modified": []}, "context": {"protected_zones": []}}
}

test_component_allowed if {
	count(deny) == 0 with input as {"feature": {"files_created": ["src/a.tsx"], "files_modified": []}, "context": {"protected_zones": []}}
}

test_wrong_expectation if {
	count(deny) == 1 with input as {"feature": {"files_created": ["src/a.tsx"], "files_modified": []}, "context": {"protected_zones": []}}
}
`
	_ = afero.WriteFile(fs, "/data/policies/integration_test.rego", []byte(tests), 0o644)

	summary, err := NewTestRunner(fs, "/data/policies", "/project").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Total != 3 || summary.Passed != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3 total, 2 passed, 1 failed", summary)
	}
	if summary.AllPassed() {
		t.Error("AllPassed() = true with a failing test")
	}
}

func TestTestRunner_NoTests(t *testing.T) {
	summary, err := NewTestRunner(afero.NewMemMapFs(), "/none", "/").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("Total = %d, want 0", summary.Total)
	}
	if got := summary.FormatSummary(); got != "No tests found.\n" {
		t.Errorf("FormatSummary() = %q", got)
	}
}
