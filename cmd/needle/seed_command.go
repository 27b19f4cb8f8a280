package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.json>",
		Short: "Add artists and albums from a JSON catalog document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer file.Close()

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.SeedCatalog(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d artists and %d albums (%d already present)\n",
				result.Artists, result.Albums, result.Skipped)
			return nil
		},
	}
}
