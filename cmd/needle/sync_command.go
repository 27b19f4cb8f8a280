package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"needle/internal/ipc"
	"needle/internal/workflow"
)

var loopNames = []string{"rss", "downloads", "search"}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "sync <rss|downloads|search>",
		Short:     "Run one daemon loop now, inside the daemon when it is running",
		Args:      cobra.ExactArgs(1),
		ValidArgs: loopNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(loopNames, args[0]) {
				return fmt.Errorf("unknown loop %q (want one of rss, downloads, search)", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if client, err := ipc.Dial(ipc.SocketPath(cfg)); err == nil {
				defer client.Close()
				if err := client.RunLoop(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s finished in the daemon\n", args[0])
				return nil
			}

			// A loop disabled in the config still runs on demand.
			forced := *cfg
			forced.Workflow.RSSSyncInterval = max(forced.Workflow.RSSSyncInterval, 1)
			forced.Workflow.DownloadPollInterval = max(forced.Workflow.DownloadPollInterval, 1)
			forced.Workflow.SearchInterval = max(forced.Workflow.SearchInterval, 1)

			return ctx.withServices(func(s *workflow.Services) error {
				manager := workflow.NewManager(&forced, s, ctx.logger())
				if err := manager.RunTask(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s finished\n", args[0])
				return nil
			})
		},
	}
}
