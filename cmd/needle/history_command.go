package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"needle/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		albumID    int64
		downloadID string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show grab, import and failure history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			c := cmd.Context()
			var records []*history.Record
			switch {
			case downloadID != "":
				records, err = store.HistoryByDownloadID(c, downloadID)
			case albumID > 0:
				records, err = store.HistoryByAlbum(c, albumID)
			default:
				records, err = store.HistorySince(c, time.Now().UTC().Add(-since), "")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No history")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				size := ""
				if n, err := strconv.ParseInt(r.Get(history.DataSize), 10, 64); err == nil && n > 0 {
					size = humanize.IBytes(uint64(n))
				}
				rows = append(rows, []string{
					humanize.Time(r.Date),
					string(r.EventType),
					r.SourceTitle,
					r.Quality.String(),
					size,
					r.DownloadID,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"When", "Event", "Source", "Quality", "Size", "Download"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().Int64Var(&albumID, "album", 0, "Only records for this album id")
	cmd.Flags().StringVar(&downloadID, "download", "", "Only records for this download id")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "How far back to list when no filter is given")
	return cmd
}
