package app

import (
	"context"
	"io"

	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/logger"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/telemetry"
)

// ToggleResult is the outcome of SetEnabled.
type ToggleResult struct {
	Feature *registry.FeatureDefinition `json:"feature,omitempty"`
	Check   *registry.DisableCheck      `json:"check,omitempty"`
}

// Register adds a feature with its declared dependencies.
func (a *App) Register(ctx context.Context, def registry.FeatureDefinition, deps ...registry.DependencySpec) (*registry.FeatureDefinition, error) {
	f, err := a.Registry.Register(ctx, def, deps...)
	if err != nil {
		return nil, err
	}
	a.Telemetry.Track(telemetry.EventFeatureRegistered, telemetry.Properties{"dependencies": len(deps)})
	return f, nil
}

// SetEnabled enables or disables a feature. A blocked disable returns the
// check alongside the error so callers can name the dependents.
func (a *App) SetEnabled(ctx context.Context, id string, enabled bool) (*ToggleResult, error) {
	if enabled {
		f, err := a.Registry.Enable(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ToggleResult{Feature: f}, nil
	}
	check, err := a.Registry.Disable(ctx, id)
	if err != nil {
		return &ToggleResult{Check: &check}, err
	}
	f, err := a.Registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Feature: f, Check: &check}, nil
}

// Build runs the generation pipeline for one feature.
func (a *App) Build(ctx context.Context, req builder.Request) (*builder.Report, error) {
	logger.SetFeature(req.Feature.Definition().ID)
	defer logger.SetFeature("")

	report, err := a.Builder.Build(ctx, req)
	if report != nil {
		failed := 0
		for _, item := range report.Items {
			if !item.OK() {
				failed++
			}
		}
		a.Telemetry.Track(telemetry.EventFeatureBuilt,
			telemetry.BuildProperties(len(report.Items), failed, report.Success, req.Integration.DryRun))
	}
	return report, err
}

// Integrate persists already generated code.
func (a *App) Integrate(ctx context.Context, code *codegen.GeneratedCode, def registry.FeatureDefinition, deps []registry.DependencySpec, opts integrator.Options) (*integrator.Result, error) {
	res, err := a.Integrator.Integrate(ctx, code, def, deps, opts)
	if res != nil {
		a.Telemetry.Track(telemetry.EventIntegration, telemetry.Properties{
			"success": res.Success,
			"dry_run": res.DryRun,
			"files":   len(res.FilesCreated) + len(res.TestsCreated),
		})
	}
	return res, err
}

// Rollback restores a backup.
func (a *App) Rollback(ctx context.Context, id string) (*integrator.Backup, error) {
	b, err := a.Integrator.Rollback(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Telemetry.Track(telemetry.EventRollback, telemetry.Properties{"files": len(b.Files) + len(b.Created)})
	return b, nil
}

// ImportManifest registers every feature of a YAML manifest.
func (a *App) ImportManifest(ctx context.Context, r io.Reader) ([]*registry.FeatureDefinition, error) {
	mf, err := registry.ParseManifest(r)
	if err != nil {
		return nil, err
	}
	return a.Registry.Import(ctx, mf)
}
