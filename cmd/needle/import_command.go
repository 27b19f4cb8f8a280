package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"needle/internal/config"
	"needle/internal/importer"
	"needle/internal/services"
	"needle/internal/textutil"
	"needle/internal/workflow"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		mode       string
		artistName string
		albumTitle string
	)

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import a folder or file into the library by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch mode {
			case "", config.ImportModeAuto, config.ImportModeCopy, config.ImportModeMove:
			default:
				return fmt.Errorf("--mode must be one of auto, copy, move")
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			return ctx.withServices(func(s *workflow.Services) error {
				c := services.WithRequestID(cmd.Context(), uuid.NewString())
				opts := importer.ProcessOptions{Mode: mode, Filter: true}

				if artistName != "" {
					artist, err := s.Store.ArtistByCleanName(c, textutil.CleanName(artistName))
					if err != nil {
						return err
					}
					if artist == nil {
						return fmt.Errorf("artist %q is not in the library", artistName)
					}
					opts.Overrides.Artist = artist
					if albumTitle != "" {
						albums, err := s.Store.AlbumsByArtist(c, artist.ID)
						if err != nil {
							return err
						}
						for _, album := range albums {
							if textutil.CleanName(album.Title) == textutil.CleanName(albumTitle) {
								opts.Overrides.Album = album
							}
						}
						if opts.Overrides.Album == nil {
							return fmt.Errorf("album %q of %s is not in the library", albumTitle, artist.Name)
						}
					}
				}

				results, err := s.Importer.ProcessPath(c, path, opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No audio files found")
					return nil
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"File", "Result", "Album", "Tracks", "Reason"},
					importRows(path, results),
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Import mode: auto, copy or move (default from config)")
	cmd.Flags().StringVar(&artistName, "artist", "", "Import as this library artist")
	cmd.Flags().StringVar(&albumTitle, "album", "", "Import as this album of --artist")
	return cmd
}

func importRows(root string, results []*importer.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		local := res.Decision.Subject
		name, err := filepath.Rel(root, local.Path)
		if err != nil || name == "." {
			name = filepath.Base(local.Path)
		}
		album := ""
		if local.Album != nil {
			album = local.Album.Title
		}
		titles := make([]string, 0, len(local.Tracks))
		for _, track := range local.Tracks {
			titles = append(titles, track.Title)
		}
		rows = append(rows, []string{
			name,
			string(res.Type),
			album,
			strings.Join(titles, ", "),
			strings.Join(res.Errors, "; "),
		})
	}
	return rows
}
