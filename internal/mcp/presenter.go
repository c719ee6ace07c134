package mcp

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// FormatFeatures renders features as a Markdown list.
func FormatFeatures(features []*registry.FeatureDefinition) string {
	if len(features) == 0 {
		return "No features registered."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Features (%d)\n", len(features)))
	for _, f := range features {
		sb.WriteString(fmt.Sprintf("- **%s** `%s` v%s (%s)", f.Name, f.ID, f.Version, enabledLabel(f.Enabled)))
		if f.Description != "" {
			sb.WriteString(" - " + truncate(f.Description, 120))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatFeature renders one feature.
func FormatFeature(f *registry.FeatureDefinition) string {
	if f == nil {
		return "Feature not found."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n", f.Name))
	sb.WriteString(fmt.Sprintf("**ID**: `%s`\n**Version**: %s\n**Status**: %s\n", f.ID, f.Version, enabledLabel(f.Enabled)))
	if f.Description != "" {
		sb.WriteString(fmt.Sprintf("**Description**: %s\n", f.Description))
	}
	if n := len(f.Components) + len(f.APIEndpoints) + len(f.DatabaseMigrations); n > 0 {
		sb.WriteString(fmt.Sprintf("**Artifacts**: %d components, %d endpoints, %d migrations\n",
			len(f.Components), len(f.APIEndpoints), len(f.DatabaseMigrations)))
	}
	return strings.TrimSpace(sb.String())
}

// FormatDependencies renders what id depends on and what depends on it.
func FormatDependencies(id string, deps []registry.ResolvedDependency, dependents []registry.DependencyEdge) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Dependencies of `%s`\n", id))
	if len(deps) == 0 {
		sb.WriteString("None.\n")
	}
	for _, d := range deps {
		sb.WriteString(fmt.Sprintf("- `%s` %s (%s, %s)\n", d.DependsOn, d.Name, d.Type, enabledLabel(d.Enabled)))
	}
	sb.WriteString(fmt.Sprintf("\n## Dependents of `%s`\n", id))
	if len(dependents) == 0 {
		sb.WriteString("None.\n")
	}
	for _, e := range dependents {
		sb.WriteString(fmt.Sprintf("- `%s` (%s)\n", e.FeatureID, e.Type))
	}
	return strings.TrimSpace(sb.String())
}

// FormatDisableCheck explains whether id can be disabled.
func FormatDisableCheck(id string, check registry.DisableCheck) string {
	if check.CanDisable {
		return fmt.Sprintf("`%s` can be disabled.", id)
	}
	return fmt.Sprintf("`%s` cannot be disabled. Disable these enabled dependents first: %s",
		id, "`"+strings.Join(check.DependentFeatures, "`, `")+"`")
}

// FormatEdge renders a dependency edge.
func FormatEdge(e registry.DependencyEdge) string {
	return fmt.Sprintf("`%s` now depends on `%s` (%s).", e.FeatureID, e.DependsOn, e.Type)
}

// FormatError returns a Markdown error.
func FormatError(message string) string {
	return fmt.Sprintf("## Error\n\n**Details**: %s", message)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
