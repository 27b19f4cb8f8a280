package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"needle/internal/decision"
	"needle/internal/indexer"
	"needle/internal/textutil"
	"needle/internal/workflow"
)

func newRankCommand(ctx *commandContext) *cobra.Command {
	var (
		albumTitle string
		grab       bool
	)

	cmd := &cobra.Command{
		Use:   "rank [artist]",
		Short: "Evaluate and rank releases from the indexers",
		Long: "Without an artist the recent feed of every indexer is ranked. With an artist " +
			"the indexers are searched for its monitored albums, or only --album when given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *workflow.Services) error {
				c := cmd.Context()
				var (
					decisions []*decision.ReleaseDecision
					err       error
				)
				if len(args) == 0 {
					decisions, err = rankRecent(c, s)
				} else {
					decisions, err = rankSearch(c, s, args[0], albumTitle)
				}
				if err != nil {
					return err
				}
				prioritized := s.Comparator.Prioritize(decisions)

				out := cmd.OutOrStdout()
				if len(prioritized) == 0 {
					fmt.Fprintln(out, "No releases found")
					return nil
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "Release", "Quality", "Size", "Indexer", "Score", "Decision"},
					rankRows(prioritized),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))

				if grab {
					processed := s.Grabber.Process(c, prioritized)
					fmt.Fprintf(out, "Grabbed %d, pending %d, rejected %d\n",
						len(processed.Grabbed), len(processed.Pending), len(processed.Rejected))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&albumTitle, "album", "", "Only search for this album of the artist")
	cmd.Flags().BoolVar(&grab, "grab", false, "Send the best accepted releases to the download clients")
	return cmd
}

func rankRecent(ctx context.Context, s *workflow.Services) ([]*decision.ReleaseDecision, error) {
	var releases []*indexer.Release
	for _, idx := range s.Indexers {
		recent, err := idx.GetRecent(ctx)
		if err != nil {
			return nil, fmt.Errorf("indexer %s: %w", idx.Name(), err)
		}
		releases = append(releases, recent...)
	}
	return s.Decisions.GetRssDecisions(ctx, releases), nil
}

func rankSearch(ctx context.Context, s *workflow.Services, artistName, albumTitle string) ([]*decision.ReleaseDecision, error) {
	artist, err := s.Store.ArtistByCleanName(ctx, textutil.CleanName(artistName))
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, fmt.Errorf("artist %q is not in the library", artistName)
	}
	albums, err := s.Store.AlbumsByArtist(ctx, artist.ID)
	if err != nil {
		return nil, err
	}
	criteria := &indexer.SearchCriteria{Artist: artist, UserInvoked: true, Interactive: true}
	for _, album := range albums {
		if albumTitle != "" {
			if textutil.CleanName(album.Title) == textutil.CleanName(albumTitle) {
				criteria.Albums = append(criteria.Albums, album)
			}
			continue
		}
		if album.Monitored {
			criteria.Albums = append(criteria.Albums, album)
		}
	}
	if len(criteria.Albums) == 0 {
		return nil, fmt.Errorf("no matching monitored albums for %s", artist.Name)
	}

	var releases []*indexer.Release
	for _, idx := range s.Indexers {
		found, err := idx.Search(ctx, *criteria)
		if err != nil {
			return nil, fmt.Errorf("indexer %s: %w", idx.Name(), err)
		}
		releases = append(releases, found...)
	}
	return s.Decisions.GetSearchDecisions(ctx, releases, criteria), nil
}

func rankRows(decisions []*decision.ReleaseDecision) [][]string {
	rows := make([][]string, 0, len(decisions))
	for i, d := range decisions {
		remote := d.Subject
		qualityName := ""
		if remote.ParsedInfo != nil {
			qualityName = remote.ParsedInfo.Quality.String()
		}
		size := ""
		if remote.Release.Size > 0 {
			size = humanize.IBytes(uint64(remote.Release.Size))
		}
		verdict := "accepted"
		if !d.Accepted() {
			verdict = strings.Join(d.Reasons(), "; ")
			if d.TemporarilyRejected() {
				verdict = "pending: " + verdict
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			remote.Release.Title,
			qualityName,
			size,
			remote.Release.Indexer,
			strconv.Itoa(remote.CustomFormatScore),
			verdict,
		})
	}
	return rows
}
