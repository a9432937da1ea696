package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/usecase"
)

func newCardCmd(root *rootOptions) *cobra.Command {
	var (
		search string
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "card [name]",
		Short: "Show a card from the catalog",
		Long:  "Show a card by name, ignoring case, or list cards by name prefix with --search.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(output); err != nil {
				return err
			}
			searching := cmd.Flags().Changed("search")
			if searching == (len(args) == 1) {
				return fmt.Errorf("give either a card name or --search <prefix>")
			}

			dbCtx, err := database.Connect(root.catalogPath())
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			uc := usecase.NewCatalog(dbCtx, root.logger)

			if searching {
				recs, err := uc.Search(cmd.Context(), search, limit)
				if err != nil {
					return err
				}
				if output == "json" {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				outputCardList(cmd, recs)
				return nil
			}

			rec, err := uc.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("card not found: %s", args[0])
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			outputCardTable(cmd, rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "List cards whose names start with this prefix")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of search results")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")

	return cmd
}

func outputCardTable(cmd *cobra.Command, rec *card.Record) {
	valueWidth := getTerminalWidth() - 22
	if valueWidth < 30 {
		valueWidth = 30
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendRow(table.Row{"Name", rec.Name})
	t.AppendRow(table.Row{"Type", truncate(rec.TypeLine, valueWidth)})
	if rec.ManaCost != "" {
		t.AppendRow(table.Row{"Mana Cost", rec.ManaCost})
	}
	if rec.CMC != nil {
		t.AppendRow(table.Row{"Mana Value", strconv.FormatFloat(*rec.CMC, 'f', -1, 64)})
	}
	if rec.Rarity != "" {
		t.AppendRow(table.Row{"Rarity", rec.Rarity})
	}
	t.AppendRow(table.Row{"Colors", joinOrDash(rec.Colors)})
	t.AppendRow(table.Row{"Color Identity", joinOrDash(rec.ColorIdentity)})
	for _, face := range rec.Faces {
		t.AppendRow(table.Row{"Face", face.Name})
	}

	formats := make([]string, 0, len(rec.Legalities))
	for format := range rec.Legalities {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	for _, format := range formats {
		t.AppendRow(table.Row{"Legality: " + format, string(rec.Legalities[format])})
	}
	t.Render()
}

func outputCardList(cmd *cobra.Command, recs []card.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cards found")
		return
	}

	available := getTerminalWidth() - 30
	nameWidth := max(available/2, 20)
	typeWidth := max(available-nameWidth, 20)

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Name", "Type", "Mana Cost", "Rarity"})
	for _, rec := range recs {
		t.AppendRow(table.Row{
			truncate(rec.Name, nameWidth),
			truncate(rec.TypeLine, typeWidth),
			rec.ManaCost,
			rec.Rarity,
		})
	}
	t.Render()
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, "")
}
