// File: cmd/validate.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// newValidateCmd checks a configuration file without launching a browser.
func newValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file, then print a redacted summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.LoadWithViper(viper.New(), *cfgFile)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			printSummary(cmd.OutOrStdout(), *cfgFile, cfg)
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, cfg *config.Config) {
	submit := cfg.FormFields.SubmitButton
	if submit == "" {
		submit = "(fallback chain)"
	}
	s := cfg.SessionSettings

	fmt.Fprintf(w, "Configuration OK: %s\n", path)
	fmt.Fprintf(w, "  login_url:         %s\n", cfg.LoginURL)
	fmt.Fprintf(w, "  session_url:       %s\n", cfg.SessionURL)
	fmt.Fprintf(w, "  credentials:       %s\n", cfg.Credentials)
	fmt.Fprintf(w, "  form_fields:       username=%s password=%s submit=%s\n",
		cfg.FormFields.UsernameField, cfg.FormFields.PasswordField, submit)
	fmt.Fprintf(w, "  session_settings:  headless=%t timeout=%s page_load_timeout=%s refresh_interval=%s max_retries=%d\n",
		s.Headless, s.TimeoutDuration(), s.PageLoadTimeoutDuration(), s.RefreshIntervalDuration(), s.MaxRetries)
	fmt.Fprintf(w, "  settle:            login=%s navigation=%s\n",
		s.LoginSettleDuration(), s.NavigationSettleDuration())
	fmt.Fprintf(w, "  browser:           driver=%s\n", cfg.Browser.Driver)
	fmt.Fprintf(w, "  log_file:          %s\n", cfg.Logger.LogFile)
}
