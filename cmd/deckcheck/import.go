package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/importer"
	"github.com/choplin/deckcheck/internal/usecase"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		threshold string
		batchSize int
		reset     bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "import <source>",
		Short: "Import a bulk card dataset into the catalog",
		Long: "Import a JSON array or JSON-lines card dataset, optionally gzip-compressed, into the catalog.\n" +
			"Sources below the stream threshold are parsed in one pass; larger ones are streamed record by record.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := importOptions(root, cmd, threshold, batchSize)
			if err != nil {
				return err
			}
			if !quiet {
				out := cmd.ErrOrStderr()
				opts.Progress = func(s importer.Stats) {
					fmt.Fprintf(out, "processed %s records (%s imported, %s skipped)\n",
						humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Imported)), humanize.Comma(int64(s.Skipped)))
				}
			}

			dbCtx, err := database.Connect(root.catalogPath())
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			uc := usecase.NewCatalog(dbCtx, root.logger)
			result, importErr := uc.Import(cmd.Context(), usecase.ImportInput{
				Path:    args[0],
				Reset:   reset,
				Options: opts,
			})
			if result != nil {
				printImportStats(cmd, result.Stats)
			}
			return importErr
		},
	}

	cmd.Flags().StringVar(&threshold, "threshold", "", "Stream sources at or above this size, e.g. \"100 MB\" (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per write transaction (default from config)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Empty the catalog before importing")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")

	return cmd
}

func importOptions(root *rootOptions, cmd *cobra.Command, threshold string, batchSize int) (importer.Options, error) {
	cfg := root.cfg
	opts := importer.DefaultOptions()
	opts.Logger = root.logger
	opts.ProgressEvery = cfg.Import.ProgressEvery
	opts.GCEvery = cfg.Import.GCEvery
	opts.BatchSize = cfg.Import.BatchSize

	limit, err := cfg.StreamThresholdBytes()
	if err != nil {
		return opts, err
	}
	opts.StreamThreshold = limit

	if cmd.Flags().Changed("threshold") {
		n, err := humanize.ParseBytes(threshold)
		if err != nil {
			return opts, fmt.Errorf("invalid --threshold %q: %w", threshold, err)
		}
		opts.StreamThreshold = int64(n)
	}
	if cmd.Flags().Changed("batch-size") {
		if batchSize <= 0 {
			return opts, fmt.Errorf("--batch-size must be positive, got %d", batchSize)
		}
		opts.BatchSize = batchSize
	}
	return opts, nil
}

func printImportStats(cmd *cobra.Command, stats *importer.Stats) {
	if stats == nil {
		return
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Imported %s cards, skipped %s\n", humanize.Comma(int64(stats.Imported)), humanize.Comma(int64(stats.Skipped)))
	if stats.Strategy != "" {
		source := humanize.Bytes(uint64(max(stats.SourceSize, 0)))
		if stats.Compressed {
			source += " gzip"
		}
		fmt.Fprintf(out, "Strategy: %s (%s) in %s\n", stats.Strategy, source, stats.Duration.Round(time.Millisecond))
	}

	reasons := make([]string, 0, len(stats.SkipReasons))
	for reason := range stats.SkipReasons {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  skipped (%s): %s\n", reason, humanize.Comma(int64(stats.SkipReasons[reason])))
	}
}
