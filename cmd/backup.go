/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List and restore integration backups",
	Long: `Integrations that overwrite files take a full copy of each file first.
A backup can be restored explicitly; nothing is rolled back automatically.`,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		backups, err := a.Integrator.ListBackups(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, backups)
		}
		ui.BackupTable(cmd.OutOrStdout(), backups)
		return nil
	}),
}

var backupRollbackCmd = &cobra.Command{
	Use:   "rollback <backup-id>",
	Short: "Restore the files of a backup",
	Long: `Restore overwritten files and delete the files the integration created.
The feature stays registered; remove it with 'todobuilder feature remove'.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
		b, err := a.Rollback(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Restored %d files and removed %d created files of %s\n",
			ui.Icon("✓", ui.StyleSuccess), len(b.Files), len(b.Created), b.FeatureID)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd, backupRollbackCmd)
}
