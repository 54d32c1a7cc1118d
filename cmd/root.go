// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
	"github.com/xkilldash9x/session-keeper/internal/config"
	"github.com/xkilldash9x/session-keeper/internal/keeper"
	"github.com/xkilldash9x/session-keeper/internal/observability"
)

// Function variables swapped out in tests.
var (
	newBrowserFactory = browser.NewFactory
	keeperOptions     []keeper.Option
)

// flagBindings maps command-line flags onto configuration keys.
var flagBindings = map[string]string{
	"headless":         "session_settings.headless",
	"refresh-interval": "session_settings.refresh_interval",
	"max-retries":      "session_settings.max_retries",
	"driver":           "browser.driver",
	"log-level":        "logger.level",
}

// NewRootCommand builds a fresh command tree. Each call gets its own viper
// instance so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "session-keeper",
		Short: "Logs into a website and keeps the session alive by refreshing the page.",
		Long: `session-keeper opens a browser, logs into login_url with the configured
credentials, navigates to session_url and reloads it every refresh_interval
seconds until it is interrupted or max_retries consecutive reloads fail.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags only override the file when the user actually sets them.
			for flag, key := range flagBindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeeper(cmd.Context(), v, cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultConfigFile, "path to the configuration file")

	flags := rootCmd.Flags()
	flags.Bool("headless", false, "run the browser without a window")
	flags.Float64("refresh-interval", 0, "seconds between page refreshes")
	flags.Int("max-retries", 0, "consecutive refresh failures tolerated before giving up")
	flags.String("driver", "", "browser driver: chromedp or playwright")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
	rootCmd.AddCommand(newValidateCmd(&cfgFile), newLogsCmd(&cfgFile), newVersionCmd())
	return rootCmd
}

// Execute runs the root command with the signal-aware context from main.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	logger := observability.GetLogger()
	if errors.Is(err, context.Canceled) {
		logger.Info("Session keeper interrupted.")
	} else {
		logger.Error("Command execution failed.", zap.Error(err))
	}
	observability.Sync()
	return err
}

// runKeeper loads the configuration, sets up logging and runs the keeper
// until it stops.
func runKeeper(ctx context.Context, v *viper.Viper, cfgFile string) error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.LoadWithViper(v, cfgFile)
	if err != nil {
		// Still log through the default sinks so the failure lands in the log file.
		observability.InitializeLogger(config.NewDefaultConfig().Logger)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	observability.InitializeLogger(cfg.Logger)
	logger := observability.GetLogger()
	defer observability.Sync()

	logger.Info("=== Session Keeper started ===", zap.String("version", Version))
	defer logger.Info("=== Session Keeper finished ===")
	logger.Info("Configuration loaded.", zap.String("path", cfgFile))

	factory := newBrowserFactory(cfg.BrowserOptions(), cfg.SessionSettings.TimeoutDuration(), logger)
	return keeper.NewRunner(cfg, factory, logger, keeperOptions...).Run(ctx)
}

// loadDotEnv reads ./.env into the environment if it exists. Variables that
// are already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
