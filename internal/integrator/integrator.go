// Package integrator writes generated code into the project, applies its
// migrations and registers the resulting feature.
package integrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/metrics"
	"github.com/josephgoksu/TodoBuilder/internal/policy"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
)

// Registry is the part of the feature registry the integrator uses.
type Registry interface {
	List(ctx context.Context) ([]*registry.FeatureDefinition, error)
	CheckRegistration(ctx context.Context, def registry.FeatureDefinition, deps ...registry.DependencySpec) (*registry.RegistrationCheck, error)
	Register(ctx context.Context, def registry.FeatureDefinition, deps ...registry.DependencySpec) (*registry.FeatureDefinition, error)
	ApplyMigration(ctx context.Context, id, up string) (bool, error)
	AppliedMigrations(ctx context.Context) ([]registry.AppliedMigration, error)
}

// PolicyEvaluator checks planned writes against guardrails.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in policy.Input) (*policy.Decision, error)
}

// TestRunner runs generated tests.
type TestRunner interface {
	Run(ctx context.Context, code *codegen.GeneratedCode, cfg testpipeline.Config) *testpipeline.Result
}

// Config wires an Integrator.
type Config struct {
	Fs          afero.Fs
	ProjectRoot string
	// BackupDir holds one directory per backup; usually <dataDir>/backups.
	BackupDir string
	Policy    PolicyEvaluator
	Tests     TestRunner
	Logger    *slog.Logger
}

// Integrator persists generated features.
type Integrator struct {
	registry  Registry
	fs        afero.Fs
	root      string
	backupDir string
	policy    PolicyEvaluator
	tests     TestRunner
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Integrator.
func New(reg Registry, cfg Config) *Integrator {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.ProjectRoot, ".todobuilder", "backups")
	}
	return &Integrator{
		registry:  reg,
		fs:        cfg.Fs,
		root:      cfg.ProjectRoot,
		backupDir: cfg.BackupDir,
		policy:    cfg.Policy,
		tests:     cfg.Tests,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Options control an integration. RunTests with no category selected runs
// testpipeline.DefaultConfig.
type Options struct {
	DryRun       bool                `json:"dryRun"`
	CreateBackup bool                `json:"createBackup"`
	RunTests     bool                `json:"runTests"`
	TestConfig   testpipeline.Config `json:"testConfig"`
}

// Result reports what an integration did, or in a dry run, would do.
// MigrationsSkipped lists migrations already in the ledger, which did not run.
type Result struct {
	Success           bool                        `json:"success"`
	FeatureID         string                      `json:"featureId"`
	DryRun            bool                        `json:"dryRun"`
	FilesCreated      []string                    `json:"filesCreated"`
	TestsCreated      []string                    `json:"testsCreated"`
	FilesModified     []string                    `json:"filesModified"`
	MigrationsApplied []string                    `json:"migrationsApplied"`
	MigrationsSkipped []string                    `json:"migrationsSkipped"`
	BackupID          string                      `json:"backupId,omitempty"`
	Tests             *testpipeline.Result        `json:"tests,omitempty"`
	Feature           *registry.FeatureDefinition `json:"feature,omitempty"`
	Errors            []string                    `json:"errors"`
	Warnings          []string                    `json:"warnings"`
}

func newResult(featureID string, dryRun bool) *Result {
	return &Result{
		FeatureID:         featureID,
		DryRun:            dryRun,
		FilesCreated:      []string{},
		TestsCreated:      []string{},
		FilesModified:     []string{},
		MigrationsApplied: []string{},
		MigrationsSkipped: []string{},
		Errors:            []string{},
		Warnings:          []string{},
	}
}

// Integrate checks, optionally tests, then writes code, applies its
// migrations and registers def. Check failures, test failures and write
// failures are reported in the result. Store failures abort and are
// returned alongside the partial result. A failed integration is not rolled
// back; the backup, when requested, can be restored with Rollback.
func (i *Integrator) Integrate(ctx context.Context, code *codegen.GeneratedCode, def registry.FeatureDefinition, deps []registry.DependencySpec, opts Options) (res *Result, err error) {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		def.ID = registry.Slug(def.Name)
	}
	res = newResult(def.ID, opts.DryRun)
	defer func() {
		metrics.ObserveIntegration(opts.DryRun, res != nil && res.Success)
	}()
	if code == nil {
		code = &codegen.GeneratedCode{}
	}

	check, err := i.check(ctx, def, deps, code)
	if err != nil {
		return res, err
	}
	res.Warnings = append(res.Warnings, check.Warnings...)
	res.FilesModified = append(res.FilesModified, check.Overwrites...)
	if !check.CanIntegrate {
		res.Errors = append(res.Errors, check.Conflicts...)
		i.logger.Info("integration rejected", "feature", def.ID, "conflicts", len(check.Conflicts))
		return res, nil
	}
	for _, m := range code.Migrations {
		if m.Up == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("migration %s has no up statement", m.ID))
		}
	}
	if len(res.Errors) > 0 {
		return res, nil
	}

	if opts.CreateBackup && !opts.DryRun {
		b, err := i.backup(def.ID, check)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("backup: %v", err))
			return res, nil
		}
		res.BackupID = b.ID
	}

	if opts.RunTests {
		if i.tests == nil {
			res.Errors = append(res.Errors, "tests requested but no test runner is configured")
			return res, nil
		}
		cfg := opts.TestConfig
		if !cfg.RunUnit && !cfg.RunIntegration && !cfg.RunE2E {
			coverage := cfg.GenerateCoverage
			cfg = testpipeline.DefaultConfig
			cfg.GenerateCoverage = coverage
		}
		res.Tests = i.tests.Run(ctx, code, cfg)
		if !res.Tests.Success {
			res.Errors = append(res.Errors, res.Tests.Errors...)
			if len(res.Tests.Errors) == 0 {
				res.Errors = append(res.Errors, "generated tests failed")
			}
			i.logger.Info("integration stopped by failing tests", "feature", def.ID,
				"passed", res.Tests.TestsPassed, "failed", res.Tests.TestsFailed)
			return res, nil
		}
	}

	if opts.DryRun {
		for _, p := range check.paths {
			res.recordFile(p)
		}
		ledger, err := i.ledger(ctx)
		if err != nil {
			return res, err
		}
		for _, m := range code.Migrations {
			res.recordMigration(migrationID(m), !ledger[migrationID(m)])
		}
		res.Success = true
		return res, nil
	}

	for _, p := range check.paths {
		if err := i.write(p.rel, p.content); err != nil {
			res.Errors = append(res.Errors, err.Error())
			i.logger.Error("integration left partially applied", "feature", def.ID, "error", err, "backup", res.BackupID)
			return res, nil
		}
		res.recordFile(p)
	}

	for _, m := range code.Migrations {
		id := migrationID(m)
		applied, err := i.registry.ApplyMigration(ctx, id, m.Up)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("migration %s: %v", id, err))
			return res, err
		}
		res.recordMigration(id, applied)
	}

	def.Files = append(append([]string{}, res.FilesCreated...), res.TestsCreated...)
	def.DatabaseMigrations = append([]registry.Descriptor{}, def.DatabaseMigrations...)
	for _, m := range code.Migrations {
		def.DatabaseMigrations = append(def.DatabaseMigrations, registry.Descriptor{"id": migrationID(m), "up": m.Up, "down": m.Down})
	}
	feature, err := i.registry.Register(ctx, def, deps...)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindConflict, apperr.KindNotFound:
			return res, nil
		}
		return res, err
	}
	res.Feature = feature
	res.Success = true
	i.logger.Info("feature integrated", "feature", def.ID, "files", len(res.FilesCreated),
		"tests", len(res.TestsCreated), "migrations", len(res.MigrationsApplied), "backup", res.BackupID)
	return res, nil
}

func (r *Result) recordFile(p plannedFile) {
	if p.test {
		r.TestsCreated = append(r.TestsCreated, p.rel)
	} else {
		r.FilesCreated = append(r.FilesCreated, p.rel)
	}
}

func (r *Result) recordMigration(id string, applied bool) {
	if applied {
		r.MigrationsApplied = append(r.MigrationsApplied, id)
		return
	}
	r.MigrationsSkipped = append(r.MigrationsSkipped, id)
	r.Warnings = append(r.Warnings, fmt.Sprintf("migration %s was already applied and is skipped", id))
}

// ledger returns the ids of applied migrations.
func (i *Integrator) ledger(ctx context.Context) (map[string]bool, error) {
	applied, err := i.registry.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(applied))
	for _, m := range applied {
		out[m.ID] = true
	}
	return out, nil
}

func (i *Integrator) write(rel, content string) error {
	full := i.abs(rel)
	if err := i.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := afero.WriteFile(i.fs, full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// migrationID falls back to a content hash so re-integrating the same
// migration hits the ledger.
func migrationID(m codegen.Migration) string {
	if m.ID != "" {
		return m.ID
	}
	sum := sha256.Sum256([]byte(m.Up))
	return "m_" + hex.EncodeToString(sum[:6])
}
