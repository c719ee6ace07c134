/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/logger"
	"github.com/josephgoksu/TodoBuilder/internal/telemetry"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables debug logging and full error chains.
	verbose bool
	// jsonOutput prints machine-readable JSON instead of tables.
	jsonOutput bool
	// version is the application version.
	version = "0.1.0"
)

// Process-wide state built by initConfig and getApp.
var (
	settings    *viper.Viper
	cfg         *config.Config
	log         *slog.Logger
	appInstance *app.App
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "todobuilder",
	Short: "TodoBuilder generates, integrates and tracks features of a todo app.",
	Long: `TodoBuilder keeps a registry of the features of a todo application and
their dependencies, generates feature code with an LLM, and integrates the
result into the project after conflict checks, policy checks and tests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetCommand(cmd.CommandPath())
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logger.SetVersion(version)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	if err != nil {
		PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.todobuilder/.todobuilder.yaml or $HOME/.todobuilder.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and detailed errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON output")
}

// initConfig loads .env, the config file and TODOBUILDER_* variables, then
// sets up logging.
func initConfig() error {
	_ = godotenv.Load()

	settings = viper.New()
	home, _ := os.UserHomeDir()
	config.Configure(settings, cfgFile, home)
	config.SetDefaults(settings)
	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	c, err := config.Load(settings)
	if err != nil {
		return err
	}
	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	l, err := logger.New(level, c.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	logger.SetBasePath(c.DataDir)
	ui.DetectColor(os.Stdout)

	cfg, log = c, l
	if used := settings.ConfigFileUsed(); used != "" {
		log.Debug("config loaded", "file", used)
	}
	return nil
}

// getApp builds the component graph on first use. Commands that never touch
// the registry do not open the store.
func getApp(ctx context.Context) (*app.App, error) {
	if appInstance != nil {
		return appInstance, nil
	}
	tel := newTelemetry()
	a, err := app.New(ctx, cfg, app.WithLogger(log), app.WithTelemetry(tel))
	if err != nil {
		_ = tel.Close()
		return nil, err
	}
	appInstance = a
	return a, nil
}

func closeApp() error {
	if appInstance == nil {
		return nil
	}
	err := appInstance.Close()
	appInstance = nil
	return err
}

func newTelemetry() telemetry.Client {
	if !cfg.Telemetry.Enabled {
		return telemetry.NoopClient{}
	}
	id, err := telemetry.LoadIdentity(afero.NewOsFs(), cfg.DataDir)
	if err != nil {
		log.Debug("telemetry disabled", "error", err)
		return telemetry.NoopClient{}
	}
	client, err := telemetry.New(telemetry.Options{
		Enabled:     true,
		APIKey:      cfg.Telemetry.APIKey,
		Endpoint:    cfg.Telemetry.Endpoint,
		Version:     version,
		AnonymousID: id.AnonymousID,
	})
	if err != nil {
		log.Debug("telemetry disabled", "error", err)
		return telemetry.NoopClient{}
	}
	return client
}

// withApp adapts a RunE that needs the application container.
func withApp(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		a.Telemetry.Track(telemetry.EventCommandExecuted, telemetry.Properties{"command": cmd.CommandPath()})
		return fn(cmd, a, args)
	}
}
