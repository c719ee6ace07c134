/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

// featureCmd represents the feature command
var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage registered features and their dependencies",
	Long: `Manage the feature registry.

A feature can depend on other features. A required dependency must be
enabled while the dependent is enabled; an optional one is informational.

Examples:
  todobuilder feature add "Todo Tags" --depends-on todos
  todobuilder feature list --active
  todobuilder feature can-disable todos
  todobuilder feature depend search todos --optional`,
}

var featureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new feature",
	Long: `Register a feature. The id defaults to a slug of the name.

Dependencies are given as <id> or <id>:optional.

Example:
  todobuilder feature add "Todo Tags" --description "Label todos" --depends-on todos`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		ver, _ := cmd.Flags().GetString("version")
		desc, _ := cmd.Flags().GetString("description")
		disabled, _ := cmd.Flags().GetBool("disabled")
		dependsOn, _ := cmd.Flags().GetStringSlice("depends-on")

		deps, err := parseDependencies(dependsOn)
		if err != nil {
			return err
		}
		f, err := a.Register(cmd.Context(), registry.FeatureDefinition{
			ID:          id,
			Name:        args[0],
			Version:     ver,
			Description: desc,
			Enabled:     !disabled,
		}, deps...)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, f)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Feature %s registered (%s)\n", ui.Icon("✓", ui.StyleSuccess), f.Name, f.ID)
		return nil
	}),
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List features",
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		active, _ := cmd.Flags().GetBool("active")
		var (
			features []*registry.FeatureDefinition
			err      error
		)
		if active {
			features, err = a.Registry.Active(cmd.Context())
		} else {
			features, err = a.Registry.List(cmd.Context())
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, features)
		}
		ui.FeatureTable(cmd.OutOrStdout(), features)
		return nil
	}),
}

var featureShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a feature and its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		f, err := a.Registry.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		deps, err := a.Registry.Dependencies(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]any{"feature": f, "dependencies": deps})
		}
		ui.FeatureDetail(cmd.OutOrStdout(), f, deps)
		return nil
	}),
}

var featureEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a feature",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		return toggleFeature(cmd, a, args[0], true)
	}),
}

var featureDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a feature",
	Long:  `Disable a feature. Refused while an enabled feature requires it.`,
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		return toggleFeature(cmd, a, args[0], false)
	}),
}

func toggleFeature(cmd *cobra.Command, a *app.App, id string, enabled bool) error {
	res, err := a.SetEnabled(cmd.Context(), id, enabled)
	if err != nil {
		if res != nil && res.Check != nil && !jsonOutput {
			ui.DisableCheck(cmd.OutOrStdout(), id, *res.Check)
		}
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", ui.Icon("✓", ui.StyleSuccess), id, ui.Status(res.Feature.Enabled, "enabled", "disabled"))
	return nil
}

var featureCanDisableCmd = &cobra.Command{
	Use:   "can-disable <id>",
	Short: "Check whether a feature can be disabled",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		check, err := a.Registry.CanDisable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, check)
		}
		ui.DisableCheck(cmd.OutOrStdout(), args[0], check)
		return nil
	}),
}

var featureRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a feature",
	Long:    `Remove a feature and its outgoing dependencies. Refused while other features depend on it.`,
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		if err := a.Registry.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]string{"removed": args[0]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Feature %s removed\n", ui.Icon("✓", ui.StyleSuccess), args[0])
		return nil
	}),
}

var featureDependCmd = &cobra.Command{
	Use:   "depend <id> <depends-on>",
	Short: "Add a dependency between two features",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		optional, _ := cmd.Flags().GetBool("optional")
		typ := registry.DependencyRequired
		if optional {
			typ = registry.DependencyOptional
		}
		edge, err := a.Registry.AddDependency(cmd.Context(), args[0], args[1], typ)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, edge)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s now depends on %s (%s)\n", ui.Icon("✓", ui.StyleSuccess), edge.FeatureID, edge.DependsOn, edge.Type)
		return nil
	}),
}

var featureUndependCmd = &cobra.Command{
	Use:   "undepend <id> <depends-on>",
	Short: "Remove a dependency between two features",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		if err := a.Registry.RemoveDependency(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, registry.DependencyEdge{FeatureID: args[0], DependsOn: args[1]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s no longer depends on %s\n", ui.Icon("✓", ui.StyleSuccess), args[0], args[1])
		return nil
	}),
}

var featureDepsCmd = &cobra.Command{
	Use:   "deps <id>",
	Short: "List what a feature depends on",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		deps, err := a.Registry.Dependencies(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, deps)
		}
		ui.DependencyTable(cmd.OutOrStdout(), deps)
		return nil
	}),
}

var featureDependentsCmd = &cobra.Command{
	Use:   "dependents <id>",
	Short: "List the features that depend on a feature",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		edges, err := a.Registry.Dependents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, edges)
		}
		ui.EdgeTable(cmd.OutOrStdout(), edges)
		return nil
	}),
}

var featureGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph in enable order",
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		g, err := a.Registry.Graph(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, g)
		}
		ui.Graph(cmd.OutOrStdout(), g)
		return nil
	}),
}

var featureImportCmd = &cobra.Command{
	Use:   "import <manifest.yaml|->",
	Short: "Register every feature of a YAML manifest",
	Long: `Register the features listed in a manifest. Features are registered in
dependency order, so a manifest may list them in any order.

Example manifest:
  features:
    - id: todos
      name: Todos
      version: 1.0.0
    - id: tags
      name: Tags
      dependencies:
        - dependsOn: todos
          type: required`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		features, err := a.ImportManifest(cmd.Context(), bytes.NewReader(data))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, features)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d features\n", ui.Icon("✓", ui.StyleSuccess), len(features))
		ui.FeatureTable(cmd.OutOrStdout(), features)
		return nil
	}),
}

// parseDependencies reads "<id>" or "<id>:<type>" values.
func parseDependencies(values []string) ([]registry.DependencySpec, error) {
	deps := make([]registry.DependencySpec, 0, len(values))
	for _, v := range values {
		id, typ, _ := strings.Cut(strings.TrimSpace(v), ":")
		if id == "" {
			continue
		}
		spec := registry.DependencySpec{DependsOn: id, Type: registry.DependencyType(strings.ToLower(typ))}
		if spec.Type != "" && !spec.Type.Valid() {
			return nil, fmt.Errorf("dependency %q: type must be required or optional", v)
		}
		deps = append(deps, spec)
	}
	return deps, nil
}

func init() {
	rootCmd.AddCommand(featureCmd)
	featureCmd.AddCommand(featureAddCmd, featureListCmd, featureShowCmd, featureEnableCmd, featureDisableCmd,
		featureCanDisableCmd, featureRemoveCmd, featureDependCmd, featureUndependCmd, featureDepsCmd,
		featureDependentsCmd, featureGraphCmd, featureImportCmd)

	featureAddCmd.Flags().String("id", "", "feature id (defaults to a slug of the name)")
	featureAddCmd.Flags().String("version", "1.0.0", "feature version")
	featureAddCmd.Flags().String("description", "", "short description")
	featureAddCmd.Flags().Bool("disabled", false, "register the feature disabled")
	featureAddCmd.Flags().StringSlice("depends-on", nil, "dependency as <id> or <id>:optional (repeatable)")

	featureListCmd.Flags().Bool("active", false, "only list enabled features")
	featureDependCmd.Flags().Bool("optional", false, "record an optional dependency")
}
