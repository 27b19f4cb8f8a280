package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"needle/internal/logging"
	"needle/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines         int
		follow        bool
		correlationID string
		downloadID    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.LogPath(cfg)
			filter := logs.Filter{correlationID, downloadID}

			out := cmd.OutOrStdout()
			last, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range last {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, offset, 0, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&correlationID, "correlation", "", "Only lines of this loop run or manual import")
	cmd.Flags().StringVar(&downloadID, "download", "", "Only lines mentioning this download id")
	return cmd
}
