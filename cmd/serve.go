/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/policy"
	"github.com/josephgoksu/TodoBuilder/internal/server"
	"github.com/josephgoksu/TodoBuilder/internal/telemetry"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var (
	servePort    int
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API used by the dashboard and other tools.

Routes live under /api/features, /api/generate and /api/integration.
Prometheus metrics are served on /metrics.

Policy files are reloaded when they change unless --no-watch is set.

Examples:
  todobuilder serve
  todobuilder serve --port 8080`,
	RunE: withApp(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API server port (default from server.port)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not reload policies when their files change")
}

func runServe(cmd *cobra.Command, a *app.App, args []string) error {
	port := a.Config.Server.Port
	if servePort > 0 {
		port = servePort
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	srv := server.New(a, port, a.Config.Server.AllowedOrigins)
	srv.Start(&wg, errChan)
	a.Telemetry.Track(telemetry.EventServerStarted, telemetry.Properties{"port": port})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s API listening on http://localhost%s\n", ui.Icon("✓", ui.StyleSuccess), srv.Addr())
	fmt.Fprintf(out, "%s\n", ui.StyleSubtle.Render("project: "+a.ProjectRoot()))

	if !serveNoWatch {
		if w := startPolicyWatch(a); w != nil {
			defer w.Stop()
		}
		if settings.ConfigFileUsed() != "" {
			settings.OnConfigChange(func(e fsnotify.Event) {
				log.Info("config file changed; server settings apply on restart", "file", e.Name)
				if err := a.Policy.Reload(context.Background()); err != nil {
					log.Warn("policy reload failed", "error", err)
				}
			})
			settings.WatchConfig()
		}
	}

	select {
	case <-cmd.Context().Done():
		fmt.Fprintln(out, "\nShutting down...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	wg.Wait()
	return nil
}

// startPolicyWatch returns nil when the policies directory does not exist.
func startPolicyWatch(a *app.App) *policy.Watcher {
	if ok, _ := afero.DirExists(a.Fs, a.Config.PoliciesDir()); !ok {
		log.Debug("policy watch skipped; no policies directory", "dir", a.Config.PoliciesDir())
		return nil
	}
	w, err := policy.NewWatcher(a.Policy, log)
	if err != nil {
		log.Warn("policy watch disabled", "error", err)
		return nil
	}
	w.Start()
	return w
}
