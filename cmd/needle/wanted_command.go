package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"needle/internal/library"
	"needle/internal/quality"
)

func newWantedCommand(ctx *commandContext) *cobra.Command {
	var cutoff bool

	cmd := &cobra.Command{
		Use:   "wanted",
		Short: "List monitored albums that are missing or below their cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			now := time.Now().UTC()
			var wanted []library.Wanted
			if cutoff {
				profiles, err := quality.ProfilesFromConfig(cfg.QualityProfiles)
				if err != nil {
					return err
				}
				wanted, err = store.CutoffUnmet(cmd.Context(), now, profiles)
				if err != nil {
					return err
				}
			} else {
				wanted, err = store.AlbumsWithoutFiles(cmd.Context(), now)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(wanted) == 0 {
				fmt.Fprintln(out, "Nothing wanted")
				return nil
			}
			rows := make([][]string, 0, len(wanted))
			for _, w := range wanted {
				released := ""
				if !w.Album.ReleaseDate.IsZero() {
					released = w.Album.ReleaseDate.Format(time.DateOnly)
				}
				lowest := ""
				if cutoff {
					lowest = w.Lowest.String()
				}
				rows = append(rows, []string{
					strconv.FormatInt(w.Album.ID, 10),
					w.Artist.Name,
					w.Album.Title,
					released,
					strconv.Itoa(w.Missing),
					lowest,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Artist", "Album", "Released", "Missing", "Lowest"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cutoff, "cutoff", false, "List albums whose files have not reached the profile cutoff")
	return cmd
}
