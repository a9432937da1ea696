package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/rules"
	"github.com/choplin/deckcheck/internal/usecase"
)

// errDeckInvalid makes main exit with status 2 after the report is printed.
var errDeckInvalid = errors.New("deck is invalid")

func newValidateCmd(root *rootOptions) *cobra.Command {
	var (
		formatName string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "validate <deckfile|->",
		Short: "Validate a deck list against the card catalog",
		Long: "Validate a deck list (one \"<count> <name>\" per line, or - for stdin) against the card catalog.\n" +
			"Exits with status 2 when the deck breaks a rule.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(output); err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") {
				formatName = root.cfg.Validate.Format
			}
			format, err := rules.FormatByName(formatName)
			if err != nil {
				return err
			}

			text, err := readDeck(cmd, args[0])
			if err != nil {
				return err
			}

			dbCtx, err := database.Connect(root.catalogPath())
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			uc := usecase.NewCatalog(dbCtx, root.logger)
			res, err := uc.Validate(cmd.Context(), usecase.ValidateInput{
				Deck:   text,
				Format: format,
			})
			if err != nil {
				return err
			}

			if output == "json" {
				if err := writeJSON(cmd.OutOrStdout(), res.Result); err != nil {
					return err
				}
			} else {
				outputValidateTable(cmd, res)
			}

			if !res.Result.IsValid {
				return errDeckInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "standard-commander", "Format: standard-commander or pauper-commander (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")

	return cmd
}

func readDeck(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		//nolint:gosec // G304: path is chosen by the user
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read deck: %w", err)
	}
	return string(data), nil
}

func outputValidateTable(cmd *cobra.Command, res *usecase.ValidateResult) {
	out := cmd.OutOrStdout()
	result := res.Result

	fmt.Fprintf(out, "%s  %s, %d cards, %d distinct\n", verdict(result.IsValid), result.Format, result.TotalCards, len(result.CardCounts))
	if len(result.Violations) == 0 {
		return
	}

	messageWidth := getTerminalWidth() - 35
	if messageWidth < 30 {
		messageWidth = 30
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Severity", "Rule", "Message"})
	for _, v := range result.Violations {
		t.AppendRow(table.Row{
			severityLabel(v.Severity),
			v.RuleName,
			truncate(v.Message, messageWidth),
		})
	}
	t.Render()
}
