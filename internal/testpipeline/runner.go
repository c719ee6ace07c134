package testpipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
)

// ReportPlaceholder is replaced in command arguments by the JSON report path.
const ReportPlaceholder = "{report}"

// Runner defaults.
var (
	DefaultCommand      = []string{"npx", "vitest", "run", "--reporter=json", "--outputFile=" + ReportPlaceholder}
	DefaultCoverageArgs = []string{"--coverage.enabled=true", "--coverage.reporter=json-summary"}
)

// DefaultCoverageFile is where vitest and jest write the json-summary.
const DefaultCoverageFile = "coverage/coverage-summary.json"

// CommandConfig configures a CommandRunner.
type CommandConfig struct {
	// Command is the test command; the generated test paths are appended.
	Command []string
	// CoverageArgs are appended when coverage is requested.
	CoverageArgs []string
	// CoverageFile is relative to the scratch directory.
	CoverageFile string
}

// CommandRunner materializes generated code in a scratch directory below the
// project root and runs a Jest/Vitest compatible command against it.
type CommandRunner struct {
	fs     afero.Fs
	root   string
	cfg    CommandConfig
	logger *slog.Logger
}

// NewCommandRunner creates a runner rooted at projectRoot. The scratch
// directory lives below the root so the project's node_modules resolve.
func NewCommandRunner(fs afero.Fs, projectRoot string, cfg CommandConfig, logger *slog.Logger) *CommandRunner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.CoverageArgs == nil {
		cfg.CoverageArgs = DefaultCoverageArgs
	}
	if cfg.CoverageFile == "" {
		cfg.CoverageFile = DefaultCoverageFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRunner{fs: fs, root: projectRoot, cfg: cfg, logger: logger}
}

// Run implements Runner.
func (r *CommandRunner) Run(ctx context.Context, run Run) (*Report, error) {
	if err := r.fs.MkdirAll(r.root, 0o755); err != nil {
		return nil, fmt.Errorf("prepare project root: %w", err)
	}
	dir, err := afero.TempDir(r.fs, r.root, ".todobuilder-tests-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := r.fs.RemoveAll(dir); err != nil {
			r.logger.Warn("remove scratch dir", "dir", dir, "error", err)
		}
	}()

	for _, f := range run.Sources {
		if _, err := r.write(dir, f); err != nil {
			return nil, err
		}
	}
	testPaths := make([]string, 0, len(run.Tests))
	for _, f := range run.Tests {
		rel, err := r.write(dir, f)
		if err != nil {
			return nil, err
		}
		testPaths = append(testPaths, rel)
	}

	reportPath := filepath.Join(dir, "report.json")
	args := make([]string, 0, len(r.cfg.Command)+len(r.cfg.CoverageArgs)+len(testPaths))
	for _, a := range r.cfg.Command {
		args = append(args, strings.ReplaceAll(a, ReportPlaceholder, reportPath))
	}
	if run.Coverage {
		args = append(args, r.cfg.CoverageArgs...)
	}
	args = append(args, testPaths...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	data, err := afero.ReadFile(r.fs, reportPath)
	if err != nil {
		// A failing suite exits non-zero but still writes a report; no report
		// means the command itself failed.
		if runErr != nil {
			return nil, apperr.Wrap(apperr.KindTestRunner, "testpipeline.command",
				fmt.Errorf("%s: %w: %s", args[0], runErr, tail(stderr.String(), 500)))
		}
		return nil, apperr.Wrap(apperr.KindTestRunner, "testpipeline.command",
			fmt.Errorf("no report written: %w", err))
	}

	report, err := parseReport(data)
	if err != nil {
		return nil, err
	}
	if run.Coverage {
		pct, err := readCoverage(r.fs, filepath.Join(dir, filepath.FromSlash(r.cfg.CoverageFile)))
		if err != nil {
			r.logger.Warn("coverage summary unavailable", "category", run.Category, "error", err)
		} else {
			report.Coverage = &pct
		}
	}
	return report, nil
}

func (r *CommandRunner) write(dir string, f codegen.GeneratedFile) (string, error) {
	rel, err := codegen.CleanPath(f.Path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "testpipeline.write", err)
	}
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := r.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := afero.WriteFile(r.fs, full, []byte(f.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, nil
}

// jsonReport is the subset of the Jest/Vitest JSON reporter output we read.
type jsonReport struct {
	NumPassedTests  int `json:"numPassedTests"`
	NumFailedTests  int `json:"numFailedTests"`
	NumPendingTests int `json:"numPendingTests"`
	NumTodoTests    int `json:"numTodoTests"`
	TestResults     []struct {
		Name             string `json:"name"`
		Status           string `json:"status"`
		Message          string `json:"message"`
		AssertionResults []struct {
			FullName        string   `json:"fullName"`
			Status          string   `json:"status"`
			FailureMessages []string `json:"failureMessages"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

func parseReport(data []byte) (*Report, error) {
	var raw jsonReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(apperr.KindTestRunner, "testpipeline.report", fmt.Errorf("parse report: %w", err))
	}
	report := &Report{
		Passed:  raw.NumPassedTests,
		Failed:  raw.NumFailedTests,
		Skipped: raw.NumPendingTests + raw.NumTodoTests,
	}
	for _, suite := range raw.TestResults {
		failedAssertions := 0
		for _, a := range suite.AssertionResults {
			if a.Status != "failed" {
				continue
			}
			failedAssertions++
			msg := a.FullName
			if len(a.FailureMessages) > 0 {
				msg += ": " + firstLine(a.FailureMessages[0])
			}
			report.Failures = append(report.Failures, msg)
		}
		// A suite that fails to load has no assertions, only a message.
		if suite.Status == "failed" && failedAssertions == 0 && suite.Message != "" {
			report.Failures = append(report.Failures, filepath.Base(suite.Name)+": "+firstLine(suite.Message))
		}
	}
	return report, nil
}

func readCoverage(fs afero.Fs, path string) (float64, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}
	var summary struct {
		Total struct {
			Lines struct {
				Pct *float64 `json:"pct"`
			} `json:"lines"`
		} `json:"total"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return 0, fmt.Errorf("parse coverage summary: %w", err)
	}
	if summary.Total.Lines.Pct == nil {
		return 0, errors.New("coverage summary has no total.lines.pct")
	}
	return *summary.Total.Lines.Pct, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
