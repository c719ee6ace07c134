/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

// generateCmd runs the full pipeline for one feature.
var generateCmd = &cobra.Command{
	Use:   "generate [name]",
	Short: "Generate a feature and integrate it into the project",
	Long: `Generate components, API endpoints and migrations for a feature with the
configured LLM, then check, test and integrate the result.

Items that fail to generate are reported; the rest are still integrated.
Use --dry-run to run every check without writing anything.

The request can come from flags or from a YAML/JSON file (--file):
  feature:
    name: Todo Tags
  dependencies:
    - dependsOn: todos
  generation:
    components:
      - name: TagList
        description: Lists the tags of a todo
    apiEndpoints:
      - method: GET
        path: /api/todos/{id}/tags
    migrations:
      - create a tags table
  integration:
    createBackup: true
    runTests: true
    testConfig:
      runUnit: true

Examples:
  todobuilder generate "Todo Tags" --component TagList --endpoint "GET /api/tags" --depends-on todos
  todobuilder generate --file tags.yaml --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}
		build := func(ctx context.Context) (*builder.Report, error) { return a.Build(ctx, req) }
		var report *builder.Report
		if jsonOutput {
			report, err = build(cmd.Context())
		} else {
			report, err = ui.RunWithSpinner(cmd.Context(), os.Stderr, "Generating "+req.Feature.Name, build)
		}
		if report != nil {
			if jsonOutput {
				if perr := printJSON(cmd, report); perr != nil {
					return perr
				}
			} else {
				ui.BuildReport(cmd.OutOrStdout(), report)
			}
		}
		if err != nil {
			return err
		}
		if !report.Success {
			return fmt.Errorf("feature %s was not fully built", report.FeatureID)
		}
		return nil
	}),
}

// buildRequest merges the request file, if any, with the command-line flags.
// Flags win over file values when set.
func buildRequest(cmd *cobra.Command, args []string) (builder.Request, error) {
	var req builder.Request
	flags := cmd.Flags()

	if file, _ := flags.GetString("file"); file != "" {
		data, err := readInput(cmd, file)
		if err != nil {
			return req, err
		}
		if err := decodeDocument(data, &req); err != nil {
			return req, err
		}
	}
	if len(args) == 1 {
		req.Feature.Name = args[0]
	}
	if id, _ := flags.GetString("id"); id != "" {
		req.Feature.ID = id
	}
	if desc, _ := flags.GetString("description"); desc != "" {
		req.Feature.Description = desc
	}
	if flags.Changed("disabled") {
		disabled, _ := flags.GetBool("disabled")
		enabled := !disabled
		req.Feature.Enabled = &enabled
	}

	components, _ := flags.GetStringSlice("component")
	for _, name := range components {
		req.Generation.Components = append(req.Generation.Components, codegen.ComponentSpec{Name: name})
	}
	endpoints, _ := flags.GetStringArray("endpoint")
	for _, e := range endpoints {
		method, path, ok := strings.Cut(strings.TrimSpace(e), " ")
		if !ok {
			return req, fmt.Errorf("endpoint %q: expected \"METHOD /path\"", e)
		}
		req.Generation.Endpoints = append(req.Generation.Endpoints, codegen.APISpec{
			Method: strings.ToUpper(method),
			Path:   strings.TrimSpace(path),
		})
	}
	migrations, _ := flags.GetStringArray("migration")
	req.Generation.Migrations = append(req.Generation.Migrations, migrations...)

	dependsOn, _ := flags.GetStringSlice("depends-on")
	deps, err := parseDependencies(dependsOn)
	if err != nil {
		return req, err
	}
	req.Dependencies = append(req.Dependencies, deps...)

	if flags.Changed("framework") {
		req.Generation.Options.Framework, _ = flags.GetString("framework")
	}
	if flags.Changed("no-tests") {
		noTests, _ := flags.GetBool("no-tests")
		include := !noTests
		req.Generation.Options.IncludeTests = &include
	}

	opts := &req.Integration
	if flags.Changed("dry-run") {
		opts.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("backup") {
		opts.CreateBackup, _ = flags.GetBool("backup")
	} else if file, _ := flags.GetString("file"); file == "" {
		opts.CreateBackup = true
	}
	if flags.Changed("test") {
		opts.RunTests, _ = flags.GetBool("test")
	}
	for flag, dst := range map[string]*bool{
		"unit":        &opts.TestConfig.RunUnit,
		"integration": &opts.TestConfig.RunIntegration,
		"e2e":         &opts.TestConfig.RunE2E,
		"coverage":    &opts.TestConfig.GenerateCoverage,
	} {
		if flags.Changed(flag) {
			*dst, _ = flags.GetBool(flag)
			opts.RunTests = true
		}
	}
	return req, nil
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringP("file", "f", "", "request file in YAML or JSON (- for stdin)")
	f.String("id", "", "feature id (defaults to a slug of the name)")
	f.String("description", "", "feature description")
	f.Bool("disabled", false, "register the feature disabled")
	f.StringSlice("component", nil, "component to generate (repeatable)")
	f.StringArray("endpoint", nil, `API endpoint to generate as "METHOD /path" (repeatable)`)
	f.StringArray("migration", nil, "migration to generate, described in prose (repeatable)")
	f.StringSlice("depends-on", nil, "dependency as <id> or <id>:optional (repeatable)")
	f.String("framework", "", "override generation.framework (react, vue, svelte, next, express)")
	f.Bool("no-tests", false, "do not generate tests")
	f.Bool("dry-run", false, "run every check without writing files or registering the feature")
	f.Bool("backup", true, "back up overwritten files before writing")
	f.Bool("test", false, "run generated tests before integrating")
	f.Bool("unit", false, "run unit tests (implies --test)")
	f.Bool("integration", false, "run integration tests (implies --test)")
	f.Bool("e2e", false, "run end-to-end tests (implies --test)")
	f.Bool("coverage", false, "collect coverage (implies --test)")
}
