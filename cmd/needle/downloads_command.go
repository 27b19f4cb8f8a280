package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"needle/internal/download"
	"needle/internal/ipc"
	"needle/internal/services"
	"needle/internal/workflow"
)

func newDownloadsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Act on downloads reported by the download clients",
	}
	cmd.AddCommand(newDownloadsImportCommand(ctx))
	return cmd
}

func newDownloadsImportCommand(ctx *commandContext) *cobra.Command {
	var (
		client         string
		ignoreWarnings bool
	)

	cmd := &cobra.Command{
		Use:   "import <download-id>",
		Short: "Reconcile one download now, inside the daemon when it is running",
		Long: "Reconcile one download now. Downloads held as a warning, because needle did not grab them\n" +
			"or could not match them to an artist and album, are imported with --ignore-warnings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			downloadID := strings.TrimSpace(args[0])
			if downloadID == "" {
				return fmt.Errorf("download id is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if conn, err := ipc.Dial(ipc.SocketPath(cfg)); err == nil {
				defer conn.Close()
				status, err := conn.ImportDownload(ipc.ImportDownloadRequest{
					Client:         client,
					DownloadID:     downloadID,
					IgnoreWarnings: ignoreWarnings,
				})
				if status != nil {
					printDownload(out, status.Title, status.State, status.Messages)
				}
				return err
			}

			return ctx.withServices(func(s *workflow.Services) error {
				c := services.WithRequestID(cmd.Context(), uuid.NewString())
				td, err := s.Monitor.ImportDownload(c, client, downloadID, download.ReconcileOptions{IgnoreWarnings: ignoreWarnings})
				if td != nil {
					var messages []string
					for _, msg := range td.Messages {
						messages = append(messages, msg.Messages...)
					}
					printDownload(out, td.Item.Title, string(td.State), messages)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "Download client holding the download (default: search all)")
	cmd.Flags().BoolVar(&ignoreWarnings, "ignore-warnings", false, "Import downloads of unknown origin or without a library match")
	return cmd
}

func printDownload(out io.Writer, title, state string, messages []string) {
	fmt.Fprintf(out, "%s: %s\n", title, state)
	for _, message := range messages {
		fmt.Fprintf(out, "  %s\n", message)
	}
}
