package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/usecase"
)

func newAddCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add --file <record.json>",
		Short: "Add or replace cards from a JSON file",
		Long: "Add or replace cards described by a JSON object or an array of objects with at least\n" +
			"\"name\" and \"type_line\". An array is written all-or-nothing. Use --file - for stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader
			if file == "-" {
				r = cmd.InOrStdin()
			} else {
				//nolint:gosec // G304: path is chosen by the user
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				r = f
			}

			dbCtx, err := database.Connect(root.catalogPath())
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			recs, err := usecase.NewCatalog(dbCtx, root.logger).Add(cmd.Context(), r)
			if err != nil {
				return err
			}

			if len(recs) == 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", recs[0].Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d cards\n", len(recs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the card records")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
