/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/policy"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

// policyCmd represents the policy parent command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage OPA policies that guard integrations",
	Long: `Manage the Rego policies evaluated before generated code is written.

A built-in policy blocks protected zones, secret files and lockfiles. Extra
policies live in <dataDir>/policies/*.rego and use the package
todobuilder.integration with deny and warn rules.

Examples:
  todobuilder policy init
  todobuilder policy list
  todobuilder policy check src/components/TagList.tsx .env
  todobuilder policy test`,
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in policy to the policies directory for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := policy.NewLoader(afero.NewOsFs(), cfg.PoliciesDir())
		written, err := loader.WriteDefault()
		if err != nil {
			return err
		}
		path := filepath.Join(loader.Dir(), policy.DefaultPolicyFile)
		if !written {
			fmt.Fprintf(cmd.OutOrStdout(), "Policy file already exists: %s\n", path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", ui.Icon("✓", ui.StyleSuccess), path)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded policies",
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		names := a.Policy.PolicyNames()
		if jsonOutput {
			return printJSON(cmd, map[string]any{
				"dir":            cfg.PoliciesDir(),
				"policies":       names,
				"protectedZones": a.Policy.ProtectedZones(),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSectionTitle.Render("Policies"))
		for _, n := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "  • %s\n", n)
		}
		if zones := a.Policy.ProtectedZones(); len(zones) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s %v\n", ui.StyleSubtle.Render("protected zones:"), zones)
		}
		return nil
	}),
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <files...>",
	Short: "Evaluate the policies against files a feature would write",
	Long: `Evaluate the policies as if a feature wrote the given project-relative
paths. Paths that exist are treated as modified, others as created. The
files themselves need not exist.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		featureID, _ := cmd.Flags().GetString("feature")
		in := policy.Input{Feature: policy.FeatureInput{ID: featureID}}
		for _, p := range args {
			exists, err := afero.Exists(a.Fs, filepath.Join(a.ProjectRoot(), p))
			if err != nil {
				return err
			}
			if exists {
				in.Feature.FilesModified = append(in.Feature.FilesModified, filepath.ToSlash(p))
			} else {
				in.Feature.FilesCreated = append(in.Feature.FilesCreated, filepath.ToSlash(p))
			}
		}
		decision, err := a.Policy.Evaluate(cmd.Context(), in)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, decision)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Status(decision.Allowed(), "✓ allowed", "✗ denied"))
		for _, v := range decision.Violations {
			fmt.Fprintf(out, "  %s %s\n", ui.Icon("✗", ui.StyleError), v)
		}
		for _, w := range decision.Warnings {
			fmt.Fprintf(out, "  %s %s\n", ui.Icon("!", ui.StyleWarning), w)
		}
		if !decision.Allowed() {
			return fmt.Errorf("%d policy violations", len(decision.Violations))
		}
		return nil
	}),
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the Rego unit tests in the policies directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := cfg.AbsProjectRoot()
		if err != nil {
			return err
		}
		summary, err := policy.NewTestRunner(afero.NewOsFs(), cfg.PoliciesDir(), root).Run(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(cmd, summary); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), summary.FormatSummary())
		}
		if !summary.AllPassed() {
			return fmt.Errorf("%d of %d policy tests failed", summary.Failed+summary.Errored, summary.Total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd, policyListCmd, policyCheckCmd, policyTestCmd)

	policyCheckCmd.Flags().String("feature", "", "feature id passed to the policies")
}
