// Package mcp exposes the feature registry to AI assistants as Model
// Context Protocol tools. Handlers return Markdown so responses stay small.
package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

const (
	ToolListFeatures  = "list_features"
	ToolDependencies  = "feature_dependencies"
	ToolCanDisable    = "can_disable_feature"
	ToolSetEnabled    = "set_feature_enabled"
	ToolAddDependency = "add_feature_dependency"
)

// toolResult turns err into a correctable result when its kind allows it.
// Store and internal failures are returned as errors.
func toolResult(tool string, err error) (*ToolResult, error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindConflict:
		return &ToolResult{Tool: tool, Error: err.Error()}, nil
	}
	return nil, err
}

func requireID(tool, id string) *ToolResult {
	if strings.TrimSpace(id) == "" {
		return &ToolResult{Tool: tool, Error: "feature_id is required"}
	}
	return nil
}

// HandleListFeatures lists registered features.
func HandleListFeatures(ctx context.Context, a *app.App, params ListFeaturesParams) (*ToolResult, error) {
	var (
		features []*registry.FeatureDefinition
		err      error
	)
	if params.ActiveOnly {
		features, err = a.Registry.Active(ctx)
	} else {
		features, err = a.Registry.List(ctx)
	}
	if err != nil {
		return toolResult(ToolListFeatures, err)
	}
	return &ToolResult{Tool: ToolListFeatures, Content: FormatFeatures(features)}, nil
}

// HandleDependencies reports both directions of a feature's edges.
func HandleDependencies(ctx context.Context, a *app.App, params FeatureParams) (*ToolResult, error) {
	if r := requireID(ToolDependencies, params.FeatureID); r != nil {
		return r, nil
	}
	deps, err := a.Registry.Dependencies(ctx, params.FeatureID)
	if err != nil {
		return toolResult(ToolDependencies, err)
	}
	dependents, err := a.Registry.Dependents(ctx, params.FeatureID)
	if err != nil {
		return toolResult(ToolDependencies, err)
	}
	return &ToolResult{Tool: ToolDependencies, Content: FormatDependencies(params.FeatureID, deps, dependents)}, nil
}

// HandleCanDisable reports whether a feature can be turned off.
func HandleCanDisable(ctx context.Context, a *app.App, params FeatureParams) (*ToolResult, error) {
	if r := requireID(ToolCanDisable, params.FeatureID); r != nil {
		return r, nil
	}
	check, err := a.Registry.CanDisable(ctx, params.FeatureID)
	if err != nil {
		return toolResult(ToolCanDisable, err)
	}
	return &ToolResult{Tool: ToolCanDisable, Content: FormatDisableCheck(params.FeatureID, check)}, nil
}

// HandleSetEnabled enables or disables a feature.
func HandleSetEnabled(ctx context.Context, a *app.App, params SetEnabledParams) (*ToolResult, error) {
	if r := requireID(ToolSetEnabled, params.FeatureID); r != nil {
		return r, nil
	}
	res, err := a.SetEnabled(ctx, params.FeatureID, params.Enabled)
	if err != nil {
		if errors.Is(err, registry.ErrDisableBlocked) && res != nil && res.Check != nil {
			return &ToolResult{
				Tool:    ToolSetEnabled,
				Content: FormatDisableCheck(params.FeatureID, *res.Check),
				Error:   err.Error(),
			}, nil
		}
		return toolResult(ToolSetEnabled, err)
	}
	return &ToolResult{Tool: ToolSetEnabled, Content: FormatFeature(res.Feature)}, nil
}

// HandleAddDependency records a dependency edge.
func HandleAddDependency(ctx context.Context, a *app.App, params AddDependencyParams) (*ToolResult, error) {
	if r := requireID(ToolAddDependency, params.FeatureID); r != nil {
		return r, nil
	}
	if strings.TrimSpace(params.DependsOn) == "" {
		return &ToolResult{Tool: ToolAddDependency, Error: "depends_on is required"}, nil
	}
	typ := registry.DependencyType(strings.ToLower(params.Type))
	if typ == "" {
		typ = registry.DependencyRequired
	}
	edge, err := a.Registry.AddDependency(ctx, params.FeatureID, params.DependsOn, typ)
	if err != nil {
		return toolResult(ToolAddDependency, err)
	}
	return &ToolResult{Tool: ToolAddDependency, Content: FormatEdge(edge)}, nil
}
