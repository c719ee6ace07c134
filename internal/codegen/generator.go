// Package codegen produces source files, tests and migrations from feature
// specifications by prompting a chat model and validating its JSON answer.
package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/metrics"
	"github.com/josephgoksu/TodoBuilder/internal/validation"
)

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 2 * time.Minute

	// DefaultRetryDelay is the base delay between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Config configures a Generator.
type Config struct {
	// Timeout bounds each provider call. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxAttempts bounds calls per item. Transient provider failures and
	// unparseable answers are retried; everything else fails immediately.
	MaxAttempts int
	RetryDelay  time.Duration
	Defaults    Options
	Logger      *slog.Logger
}

// Settings is the effective generator configuration.
type Settings struct {
	Timeout     string  `json:"timeout"`
	MaxAttempts int     `json:"maxAttempts"`
	Defaults    Options `json:"defaults"`
}

// Generator produces validated code from a Provider.
type Generator struct {
	provider  Provider
	cfg       Config
	logger    *slog.Logger
	component *template.Template
	api       *template.Template
	migration *template.Template
}

// NewGenerator creates a generator. Prompt templates are parsed once here.
func NewGenerator(p Provider, cfg Config) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	cfg.Defaults = cfg.Defaults.merged(DefaultOptions)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:  p,
		cfg:       cfg,
		logger:    logger,
		component: template.Must(template.New("component").Parse(componentPromptTemplate)),
		api:       template.Must(template.New("api").Parse(apiPromptTemplate)),
		migration: template.Must(template.New("migration").Parse(migrationPromptTemplate)),
	}
}

// Settings reports the effective configuration.
func (g *Generator) Settings() Settings {
	return Settings{
		Timeout:     g.cfg.Timeout.String(),
		MaxAttempts: g.cfg.MaxAttempts,
		Defaults:    g.cfg.Defaults,
	}
}

func (g *Generator) options(opts Options) (Options, error) {
	if err := validation.Struct("codegen.options", opts); err != nil {
		return opts, err
	}
	return opts.merged(g.cfg.Defaults), nil
}

// GenerateComponent generates a component and, if requested, its tests.
func (g *Generator) GenerateComponent(ctx context.Context, spec ComponentSpec, opts Options) (*GeneratedCode, error) {
	if err := validation.Struct("codegen.component", spec); err != nil {
		return nil, err
	}
	opts, err := g.options(opts)
	if err != nil {
		return nil, err
	}

	name := ComponentName(spec.Name)
	base := "src/components/" + name + "/" + name
	input := map[string]any{
		"ComponentName": name,
		"Spec":          specJSON(spec),
		"SourcePath":    base + sourceExt(opts.Language, true),
		"TestPath":      base + ".test" + sourceExt(opts.Language, true),
		"IncludeTests":  opts.Tests(),
		"Options":       opts,
	}

	resp, err := generate(ctx, g, "component", "component "+spec.Name, g.component, input, func(r *codeResponse) validation.Result {
		return validation.Check(r)
	})
	if err != nil {
		return nil, err
	}
	return finish(resp, "component", opts), nil
}

// GenerateAPI generates an endpoint handler and, if requested, its tests.
func (g *Generator) GenerateAPI(ctx context.Context, spec APISpec, opts Options) (*GeneratedCode, error) {
	spec.Method = strings.ToUpper(spec.Method)
	if err := validation.Struct("codegen.api", spec); err != nil {
		return nil, err
	}
	opts, err := g.options(opts)
	if err != nil {
		return nil, err
	}

	base := "src/api/" + routeSlug(spec.Path) + "." + strings.ToLower(spec.Method)
	input := map[string]any{
		"Method":       spec.Method,
		"Path":         spec.Path,
		"RequiresAuth": spec.RequiresAuth,
		"Spec":         specJSON(spec),
		"SourcePath":   base + sourceExt(opts.Language, false),
		"TestPath":     base + ".test" + sourceExt(opts.Language, false),
		"IncludeTests": opts.Tests(),
		"Options":      opts,
	}

	item := "api " + spec.Method + " " + spec.Path
	resp, err := generate(ctx, g, "api", item, g.api, input, func(r *codeResponse) validation.Result {
		return validation.Check(r)
	})
	if err != nil {
		return nil, err
	}
	return finish(resp, "api", opts), nil
}

// GenerateMigration generates a migration for a described schema change.
// The returned id is prefixed with a random component so ids from separate
// generations never collide in the migration ledger.
func (g *Generator) GenerateMigration(ctx context.Context, description string, opts Options) (*Migration, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Validation("codegen.migration", "migration description is required")
	}
	opts, err := g.options(opts)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"Description": description,
		"Options":     opts,
	}
	m, err := generate(ctx, g, "migration", "migration "+truncate(description, 60), g.migration, input, func(r *Migration) validation.Result {
		return validation.Check(r)
	})
	if err != nil {
		return nil, err
	}
	m.ID = migrationID(m.ID)
	return m, nil
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

func migrationID(name string) string {
	name = strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(name), "_"), "_")
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if name == "" {
		return prefix
	}
	return prefix + "_" + name
}

func finish(resp *codeResponse, fileType string, opts Options) *GeneratedCode {
	code := &GeneratedCode{Files: resp.Files}
	for i := range code.Files {
		if code.Files[i].Type == "" {
			code.Files[i].Type = fileType
		}
	}
	if opts.Tests() {
		code.Tests = resp.Tests
		for i := range code.Tests {
			code.Tests[i].Type = "test"
		}
	}
	return code
}

// generate is the core loop: render the prompt, call the provider under a
// deadline, then parse and validate the answer. Parse and schema failures are
// fed back into the next attempt.
func generate[T any](
	ctx context.Context,
	g *Generator,
	kind, item string,
	tmpl *template.Template,
	input map[string]any,
	check func(*T) validation.Result,
) (*T, error) {
	started := time.Now()
	op := "codegen." + kind

	var lastErr error
	var feedback string
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		promptInput := maps.Clone(input)
		if feedback != "" {
			promptInput["ValidationErrors"] = feedback
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, promptInput); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("execute template: %w", err))
		}

		raw, err := g.call(ctx, buf.String())
		if err != nil {
			lastErr = err
			if ctx.Err() == nil && isTransientError(err) && attempt < g.cfg.MaxAttempts {
				g.logger.Warn("transient generation failure, retrying", "item", item, "attempt", attempt, "error", err)
				if err := sleep(ctx, g.cfg.RetryDelay*time.Duration(attempt)); err != nil {
					lastErr = err
					break
				}
				continue
			}
			break
		}

		result, err := extractJSON[T](raw)
		if err != nil {
			lastErr = fmt.Errorf("parse response (attempt %d): %w", attempt, err)
			feedback = formatErrorFeedback("JSON Parse Error", err.Error(), raw)
			continue
		}
		if res := check(&result); !res.Valid {
			lastErr = fmt.Errorf("invalid response (attempt %d): %s", attempt, res.Summary())
			feedback = formatValidationFeedback(res)
			continue
		}

		metrics.ObserveGeneration(kind, started, nil)
		g.logger.Debug("generated", "item", item, "attempts", attempt, "duration", time.Since(started))
		return &result, nil
	}

	metrics.ObserveGeneration(kind, started, lastErr)
	g.logger.Warn("generation failed", "item", item, "error", lastErr)
	return nil, newGenerationError(op, item, lastErr)
}

func (g *Generator) call(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	raw, err := g.provider.Complete(callCtx, systemPrompt, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", err
	}
	return raw, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isTransientError checks if an error is transient and worth retrying.
func isTransientError(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	errStr := strings.ToLower(err.Error())

	// Rate limit errors
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	// Network errors
	return strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "503")
}

func formatErrorFeedback(errorType, errorMsg, rawOutput string) string {
	return fmt.Sprintf(`
PREVIOUS ATTEMPT FAILED - PLEASE FIX

Error Type: %s
Error: %s

Your previous output (which failed):
%s

Please ensure your response is valid JSON matching the required schema.
`, errorType, errorMsg, truncate(rawOutput, 500))
}

func formatValidationFeedback(result validation.Result) string {
	var sb strings.Builder
	sb.WriteString("\nPREVIOUS ATTEMPT FAILED - SCHEMA VALIDATION ERRORS\n\n")
	sb.WriteString("Please fix the following issues:\n")
	for i, e := range result.Errors {
		fmt.Fprintf(&sb, "%d. Field '%s': %s\n", i+1, e.Field, e.Message)
	}
	sb.WriteString("\nPlease regenerate the response with these issues corrected.\n")
	return sb.String()
}

func specJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
