/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var integrateCheckCmd = &cobra.Command{
	Use:   "integrate-check <feature-id> <code.json|->",
	Short: "Check whether generated code can be integrated",
	Long: `Check generated code against the project tree, the registry and the
policies without writing anything. The code document has the shape
{files: [{path, content}], tests: [...], migrations: [{id, up, down}]}.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		code, err := readCode(cmd, args[1])
		if err != nil {
			return err
		}
		check, err := a.Integrator.CanIntegrate(cmd.Context(), args[0], code)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, check)
		}
		ui.IntegrationCheck(cmd.OutOrStdout(), check)
		if !check.CanIntegrate {
			return fmt.Errorf("%s cannot be integrated: %d conflicts", args[0], len(check.Conflicts))
		}
		return nil
	}),
}

var integrateCmd = &cobra.Command{
	Use:   "integrate <name> <code.json|->",
	Short: "Integrate already generated code as a feature",
	Long: `Write previously generated code into the project and register the feature.
Runs the same checks, backups and test gate as generate.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		code, err := readCode(cmd, args[1])
		if err != nil {
			return err
		}
		// integrate shares generate's feature and integration flags.
		req, err := buildRequest(cmd, args[:1])
		if err != nil {
			return err
		}
		res, err := a.Integrate(cmd.Context(), code, req.Feature.Definition(), req.Dependencies, req.Integration)
		if res != nil {
			if jsonOutput {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			} else {
				ui.IntegrationResult(cmd.OutOrStdout(), res)
			}
		}
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("integration of %s failed", res.FeatureID)
		}
		return nil
	}),
}

func readCode(cmd *cobra.Command, path string) (*codegen.GeneratedCode, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var code codegen.GeneratedCode
	if err := decodeDocument(data, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func init() {
	rootCmd.AddCommand(integrateCheckCmd, integrateCmd)

	f := integrateCmd.Flags()
	f.String("id", "", "feature id (defaults to a slug of the name)")
	f.String("description", "", "feature description")
	f.Bool("disabled", false, "register the feature disabled")
	f.StringSlice("depends-on", nil, "dependency as <id> or <id>:optional (repeatable)")
	f.Bool("dry-run", false, "run every check without writing files or registering the feature")
	f.Bool("backup", true, "back up overwritten files before writing")
	f.Bool("test", false, "run the tests before integrating")
	f.Bool("unit", false, "run unit tests (implies --test)")
	f.Bool("integration", false, "run integration tests (implies --test)")
	f.Bool("e2e", false, "run end-to-end tests (implies --test)")
	f.Bool("coverage", false, "collect coverage (implies --test)")
}
