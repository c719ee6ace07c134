/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and initialise configuration",
	Long: `Configuration is read from flags, TODOBUILDER_* environment variables,
a .env file and .todobuilder.yaml, in that order of precedence.

The config file is searched in ./.todobuilder, $HOME and the working directory.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg.Redacted()
		if jsonOutput {
			return printJSON(cmd, shown)
		}
		data, err := config.Marshal(shown)
		if err != nil {
			return err
		}
		if used := settings.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSubtle.Render("# from "+used))
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = filepath.Join(cfg.DataDir, config.ConfigName+".yaml")
		}
		force, _ := cmd.Flags().GetBool("force")

		c, err := config.Default()
		if err != nil {
			return err
		}
		c.DataDir = cfg.DataDir
		if err := config.WriteFile(afero.NewOsFs(), path, c, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.Icon("✓", ui.StyleSuccess), path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use and the data directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := map[string]string{
			"config":   settings.ConfigFileUsed(),
			"dataDir":  cfg.DataDir,
			"policies": cfg.PoliciesDir(),
			"backups":  cfg.BackupDir(),
			"crashes":  cfg.CrashLogDir(),
		}
		if jsonOutput {
			return printJSON(cmd, paths)
		}
		out := cmd.OutOrStdout()
		if paths["config"] == "" {
			paths["config"] = "(none, using defaults)"
		}
		for _, k := range []string{"config", "dataDir", "policies", "backups", "crashes"} {
			fmt.Fprintf(out, "%-9s %s\n", k+":", paths[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd)

	configInitCmd.Flags().String("path", "", "file to write (default <dataDir>/.todobuilder.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
