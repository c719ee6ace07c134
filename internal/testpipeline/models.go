package testpipeline

import (
	"strings"
	"time"

	"github.com/josephgoksu/TodoBuilder/internal/codegen"
)

// Category groups tests by scope.
type Category string

const (
	CategoryUnit        Category = "unit"
	CategoryIntegration Category = "integration"
	CategoryE2E         Category = "e2e"
)

// Categories in the order they run.
var Categories = []Category{CategoryUnit, CategoryIntegration, CategoryE2E}

// Classify derives the category of a test file from its path.
func Classify(path string) Category {
	p := "/" + strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	switch {
	case strings.Contains(p, "/e2e/") || strings.Contains(p, ".e2e."):
		return CategoryE2E
	case strings.Contains(p, "/integration/") || strings.Contains(p, ".integration."):
		return CategoryIntegration
	default:
		return CategoryUnit
	}
}

// Config selects what to run.
type Config struct {
	RunUnit          bool `json:"runUnit"`
	RunIntegration   bool `json:"runIntegration"`
	RunE2E           bool `json:"runE2E"`
	GenerateCoverage bool `json:"generateCoverage"`
}

// DefaultConfig runs unit tests only.
var DefaultConfig = Config{RunUnit: true}

// Requested reports whether c asks for category.
func (c Config) Requested(category Category) bool {
	switch category {
	case CategoryUnit:
		return c.RunUnit
	case CategoryIntegration:
		return c.RunIntegration
	case CategoryE2E:
		return c.RunE2E
	}
	return false
}

// Run is a single runner invocation for one category.
type Run struct {
	Category Category
	Sources  []codegen.GeneratedFile
	Tests    []codegen.GeneratedFile
	Coverage bool
}

// Report is what a runner observed.
type Report struct {
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Coverage *float64 `json:"coverage,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// CategoryStatus is the outcome of a category.
type CategoryStatus string

const (
	StatusPassed  CategoryStatus = "passed"
	StatusFailed  CategoryStatus = "failed"
	StatusError   CategoryStatus = "error"
	StatusNoTests CategoryStatus = "no_tests"
)

// CategoryResult is the outcome of one requested category.
type CategoryResult struct {
	Category Category       `json:"category"`
	Status   CategoryStatus `json:"status"`
	Files    int            `json:"files"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Coverage *float64       `json:"coverage,omitempty"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

// Result aggregates every requested category.
type Result struct {
	Success     bool             `json:"success"`
	TestsPassed int              `json:"testsPassed"`
	TestsFailed int              `json:"testsFailed"`
	Coverage    *float64         `json:"coverage,omitempty"`
	Categories  []CategoryResult `json:"categories"`
	Errors      []string         `json:"errors"`
}
