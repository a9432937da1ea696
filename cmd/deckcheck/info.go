package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/rules"
	"github.com/choplin/deckcheck/internal/usecase"
)

func newInfoCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show catalog location, size and latest import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutputFormat(output); err != nil {
				return err
			}

			dbCtx, err := database.Connect(root.catalogPath())
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			info, err := usecase.NewCatalog(dbCtx, root.logger).Info(cmd.Context())
			if err != nil {
				return err
			}

			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), newInfoOutput(info))
			}
			outputInfoTable(cmd, info)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")

	return cmd
}

type infoOutput struct {
	Path       string           `json:"path"`
	Cards      int64            `json:"cards"`
	Formats    []string         `json:"formats"`
	LastImport *importRunOutput `json:"lastImport,omitempty"`
}

type importRunOutput struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	SourceSize int64  `json:"sourceSize"`
	Checksum   string `json:"checksum,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Status     string `json:"status"`
	Imported   int64  `json:"imported"`
	Skipped    int64  `json:"skipped"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

func newInfoOutput(info *usecase.Info) infoOutput {
	out := infoOutput{
		Path:    info.Path,
		Cards:   info.Count,
		Formats: rules.FormatNames(),
	}
	if run := info.LatestRun; run != nil {
		out.LastImport = &importRunOutput{
			ID:         run.ID,
			Source:     run.SourcePath,
			SourceSize: run.SourceSize,
			Checksum:   run.Checksum,
			Strategy:   run.Strategy,
			Status:     string(run.Status),
			Imported:   run.Imported,
			Skipped:    run.Skipped,
			Error:      run.Error,
			StartedAt:  run.StartedAt.Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			out.LastImport.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
	}
	return out
}

func outputInfoTable(cmd *cobra.Command, info *usecase.Info) {
	t := newTable(cmd.OutOrStdout())
	t.AppendRow(table.Row{"Catalog", info.Path})
	if st, err := os.Stat(info.Path); err == nil {
		t.AppendRow(table.Row{"File Size", humanize.Bytes(uint64(st.Size()))})
	}
	t.AppendRow(table.Row{"Cards", humanize.Comma(info.Count)})

	if run := info.LatestRun; run != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Last Import", truncate(run.SourcePath, getTerminalWidth()-20)})
		t.AppendRow(table.Row{"Status", string(run.Status)})
		if run.Strategy != "" {
			t.AppendRow(table.Row{"Strategy", fmt.Sprintf("%s (%s)", run.Strategy, humanize.Bytes(uint64(max(run.SourceSize, 0))))})
		}
		t.AppendRow(table.Row{"Imported", humanize.Comma(run.Imported)})
		t.AppendRow(table.Row{"Skipped", humanize.Comma(run.Skipped)})
		t.AppendRow(table.Row{"Started", humanize.Time(run.StartedAt)})
		if run.Error != "" {
			t.AppendRow(table.Row{"Error", truncate(run.Error, getTerminalWidth()-20)})
		}
	}
	t.Render()
}
