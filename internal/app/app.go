// Package app builds the process-wide component graph once at start-up.
// The CLI, HTTP server and MCP server are thin adapters over an *App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/policy"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/telemetry"
	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
)

// App holds every long-lived component.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Fs         afero.Fs
	Store      registry.Store
	Registry   *registry.Manager
	Generator  *codegen.Generator
	Tests      *testpipeline.Pipeline
	Policy     *policy.Engine
	Integrator *integrator.Integrator
	Builder    *builder.Builder
	Telemetry  telemetry.Client

	projectRoot string
}

type options struct {
	fs        afero.Fs
	store     registry.Store
	provider  codegen.Provider
	runner    testpipeline.Runner
	logger    *slog.Logger
	telemetry telemetry.Client
}

// Option overrides a component, mostly for tests.
type Option func(*options)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithStore replaces the configured registry store.
func WithStore(s registry.Store) Option { return func(o *options) { o.store = s } }

// WithProvider replaces the configured chat model.
func WithProvider(p codegen.Provider) Option { return func(o *options) { o.provider = p } }

// WithTestRunner replaces the external test command.
func WithTestRunner(r testpipeline.Runner) Option { return func(o *options) { o.runner = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithTelemetry sets the telemetry client.
func WithTelemetry(c telemetry.Client) Option { return func(o *options) { o.telemetry = c } }

// New opens the store and wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.NoopClient{}
	}

	root := cfg.ProjectRoot
	if _, isOs := o.fs.(*afero.OsFs); isOs {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve project root: %w", err)
		}
		root = abs
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = OpenStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	a := &App{
		Config:      cfg,
		Logger:      o.logger,
		Fs:          o.fs,
		Store:       store,
		Telemetry:   o.telemetry,
		projectRoot: root,
	}
	a.Registry = registry.NewManager(store,
		registry.WithLogger(o.logger),
		registry.WithStrictEnable(cfg.Registry.StrictEnable))

	provider := o.provider
	if provider == nil {
		provider = &lazyProvider{cfg: cfg}
	}
	a.Generator = codegen.NewGenerator(provider, codegen.Config{
		Timeout:     cfg.Generation.Timeout,
		MaxAttempts: cfg.Generation.MaxAttempts,
		Defaults: codegen.Options{
			Framework:     cfg.Generation.Framework,
			Language:      cfg.Generation.Language,
			TestFramework: cfg.Generation.TestFramework,
			SQLDialect:    cfg.Generation.SQLDialect,
		},
		Logger: o.logger,
	})

	runner := o.runner
	if runner == nil {
		runner = testpipeline.NewCommandRunner(o.fs, root, testpipeline.CommandConfig{
			Command:      cfg.Testing.Command,
			CoverageArgs: cfg.Testing.CoverageArgs,
			CoverageFile: cfg.Testing.CoverageFile,
		}, o.logger)
	}
	a.Tests = testpipeline.New(runner,
		testpipeline.WithTimeout(cfg.Testing.Timeout),
		testpipeline.WithLogger(o.logger))

	engine, err := policy.NewEngine(ctx, policy.EngineConfig{
		Fs:             o.fs,
		ProjectRoot:    root,
		Dir:            cfg.PoliciesDir(),
		ProtectedZones: cfg.Policy.ProtectedZones,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load policies: %w", err)
	}
	a.Policy = engine

	a.Integrator = integrator.New(a.Registry, integrator.Config{
		Fs:          o.fs,
		ProjectRoot: root,
		BackupDir:   cfg.BackupDir(),
		Policy:      engine,
		Tests:       a.Tests,
		Logger:      o.logger,
	})
	a.Builder = builder.New(a.Generator, a.Integrator, o.logger)
	return a, nil
}

// ProjectRoot is the resolved root generated files are written below.
func (a *App) ProjectRoot() string {
	return a.projectRoot
}

// Close releases the store and flushes telemetry.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Telemetry.Close())
}

// OpenStore opens the registry backend named by store.backend.
func OpenStore(ctx context.Context, cfg *config.Config) (registry.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return registry.NewMemoryStore(), nil
	case config.BackendPostgres:
		s, err := registry.NewPostgresStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite, "":
		s, err := registry.NewSQLiteStore(ctx, cfg.RegistryDir())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
