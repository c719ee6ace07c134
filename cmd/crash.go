/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/logger"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var crashCmd = &cobra.Command{
	Use:   "crash",
	Short: "Inspect crash logs",
	Long: `TodoBuilder writes a crash log to <dataDir>/crash_logs when it panics.
The ten most recent logs are kept.`,
}

var crashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crash logs, newest last",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := logger.ListCrashLogs()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, paths)
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No crash logs.")
			return nil
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Base(p))
		}
		return nil
	},
}

var crashShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show a crash log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if filepath.Base(path) == path {
			path = filepath.Join(cfg.CrashLogDir(), path)
		}
		c, err := logger.ReadCrashLog(path)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, c)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.StyleSectionTitle.Render("Crash "+c.Timestamp.Format("2006-01-02 15:04:05")))
		fmt.Fprintf(out, "version: %s\ncommand: %s\n", c.Version, c.Command)
		if c.Feature != "" {
			fmt.Fprintf(out, "feature: %s\n", c.Feature)
		}
		fmt.Fprintf(out, "panic:   %s\n\n%s\n", ui.StyleError.Render(c.PanicValue), c.StackTrace)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crashCmd)
	crashCmd.AddCommand(crashListCmd, crashShowCmd)
}
