// Package testpipeline runs generated tests through an external test runner
// and aggregates the outcome per category.
package testpipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/metrics"
)

// DefaultTimeout bounds one runner invocation.
const DefaultTimeout = 5 * time.Minute

// Runner executes one category of tests.
type Runner interface {
	Run(ctx context.Context, run Run) (*Report, error)
}

// Pipeline dispatches requested categories to a Runner.
type Pipeline struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds each runner invocation.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline over runner.
func New(runner Runner, opts ...Option) *Pipeline {
	p := &Pipeline{runner: runner, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the requested categories against code. Categories that were
// not requested are skipped entirely. Runner failures are reported in the
// result, never returned.
func (p *Pipeline) Run(ctx context.Context, code *codegen.GeneratedCode, cfg Config) *Result {
	res := &Result{Success: true, Categories: []CategoryResult{}, Errors: []string{}}
	if code == nil {
		code = &codegen.GeneratedCode{}
	}

	byCategory := make(map[Category][]codegen.GeneratedFile)
	for _, t := range code.Tests {
		c := Classify(t.Path)
		byCategory[c] = append(byCategory[c], t)
	}

	var covSum float64
	var covN int
	for _, category := range Categories {
		if !cfg.Requested(category) {
			continue
		}
		tests := byCategory[category]
		cr := CategoryResult{Category: category, Files: len(tests)}
		if len(tests) == 0 {
			cr.Status = StatusNoTests
			res.Categories = append(res.Categories, cr)
			continue
		}

		started := time.Now()
		report, err := p.runCategory(ctx, Run{
			Category: category,
			Sources:  code.Files,
			Tests:    tests,
			Coverage: cfg.GenerateCoverage,
		})
		cr.Duration = time.Since(started)

		if err != nil {
			cr.Status = StatusError
			cr.Error = err.Error()
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("%s tests: %v", category, err))
			p.logger.Warn("test runner failed", "category", category, "error", err)
			metrics.ObserveTestRun(string(category), false)
			res.Categories = append(res.Categories, cr)
			continue
		}

		cr.Passed, cr.Failed, cr.Skipped = report.Passed, report.Failed, report.Skipped
		res.TestsPassed += report.Passed
		res.TestsFailed += report.Failed
		cr.Status = StatusPassed
		if report.Failed > 0 {
			cr.Status = StatusFailed
			res.Success = false
			for _, f := range report.Failures {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", category, f))
			}
		}
		if cfg.GenerateCoverage && report.Coverage != nil {
			cr.Coverage = report.Coverage
			covSum += *report.Coverage
			covN++
		}
		metrics.ObserveTestRun(string(category), report.Failed == 0)
		p.logger.Info("tests ran", "category", category, "passed", report.Passed, "failed", report.Failed)
		res.Categories = append(res.Categories, cr)
	}

	if covN > 0 {
		avg := covSum / float64(covN)
		res.Coverage = &avg
	}
	return res
}

func (p *Pipeline) runCategory(ctx context.Context, run Run) (*Report, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report, err := p.runner.Run(runCtx, run)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindTimeout, "testpipeline.run",
				fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, p.timeout, err))
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindTestRunner, "testpipeline.run", err)
		}
		return nil, err
	}
	if report == nil {
		return nil, apperr.New(apperr.KindTestRunner, "runner returned no report")
	}
	return report, nil
}
