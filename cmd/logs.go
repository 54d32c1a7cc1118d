// File: cmd/logs.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// newLogsCmd prints the keeper's log file, optionally following it the way
// `tail -f` does.
func newLogsCmd(cfgFile *string) *cobra.Command {
	var (
		follow bool
		file   string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the session log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				if err := loadDotEnv(); err != nil {
					return err
				}
				cfg, err := config.LoadWithViper(viper.New(), *cfgFile)
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				path = cfg.Logger.LogFile
			}
			return streamLog(cmd.Context(), cmd.OutOrStdout(), path, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are appended")
	cmd.Flags().StringVar(&file, "file", "", "log file to read instead of the configured one")
	return cmd
}

// streamLog copies path to w line by line. Without follow it stops at EOF;
// with follow it runs until ctx is done.
func streamLog(ctx context.Context, w io.Writer, path string, follow bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read log file: %w", line.Err)
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
		}
	}
}
