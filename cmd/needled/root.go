package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"needle/internal/config"
	"needle/internal/daemonrun"
)

// run is swapped in tests so the command wiring can be checked without
// starting a daemon.
var run = daemonrun.Run

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		envFlag    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "needled",
		Short:         "Needle daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(envFlag); err != nil {
				return err
			}
			cfg, _, _, err := config.Load(strings.TrimSpace(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&envFlag, "env-file", "", "Environment file loaded before the configuration (default .env when present)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

// loadEnv loads the env file without overriding variables already set. The
// default .env is optional; an explicit file must exist.
func loadEnv(path string) error {
	path = strings.TrimSpace(path)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
