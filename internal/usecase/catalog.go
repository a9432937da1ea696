package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/deck"
	"github.com/choplin/deckcheck/internal/importer"
	"github.com/choplin/deckcheck/internal/logging"
	"github.com/choplin/deckcheck/internal/rules"
	"github.com/choplin/deckcheck/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyCatalog means validation was requested before any card was imported.
var ErrEmptyCatalog = errors.New("card catalog is empty; run `deckcheck import` first")

type Catalog struct {
	dbCtx          *database.Context
	catalogService *services.CatalogService
	runService     *services.ImportRunService
	logger         *slog.Logger
}

func NewCatalog(dbCtx *database.Context, logger *slog.Logger) *Catalog {
	return &Catalog{
		dbCtx:          dbCtx,
		catalogService: services.NewCatalogService(dbCtx),
		runService:     services.NewImportRunService(dbCtx),
		logger:         logging.OrDefault(logger),
	}
}

type ImportInput struct {
	Path    string
	Reset   bool
	Options importer.Options
}

type ImportResult struct {
	RunID string
	Stats *importer.Stats
}

// Import loads a bulk source and records the run in the import history.
// The run row is finalised even when the import fails or is cancelled.
func (u *Catalog) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if input.Reset {
		if err := u.catalogService.ResetAll(ctx); err != nil {
			return nil, err
		}
	} else if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}

	run, err := u.runService.Start(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	opts := input.Options
	if opts.Logger == nil {
		opts.Logger = u.logger
	}
	stats, importErr := importer.New(u.catalogService, opts).Import(ctx, input.Path)

	run.SourceSize = stats.SourceSize
	run.Strategy = string(stats.Strategy)
	run.Checksum = stats.Checksum
	run.Imported = int64(stats.Imported)
	run.Skipped = int64(stats.Skipped)

	if err := u.runService.Finish(context.WithoutCancel(ctx), run, importErr); err != nil {
		u.logger.Warn("failed to record import result", "run", run.ID, "error", err)
	}

	return &ImportResult{RunID: run.ID, Stats: stats}, importErr
}

type ValidateInput struct {
	Deck   string
	Format rules.Format
}

type ValidateResult struct {
	Deck   *deck.Deck
	Result *rules.Result
}

// Validate parses deck text and evaluates it against the catalog. It fails
// with ErrEmptyCatalog before parsing when nothing has been imported.
func (u *Catalog) Validate(ctx context.Context, input ValidateInput) (*ValidateResult, error) {
	if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	n, err := u.catalogService.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyCatalog
	}

	d, err := deck.Parse(input.Deck)
	if err != nil {
		return nil, err
	}

	result := rules.NewEvaluator(input.Format, u.catalogService, u.logger).Evaluate(ctx, d.Counts)
	u.logger.Debug("deck evaluated",
		"format", input.Format.Name,
		"cards", result.TotalCards,
		"violations", len(result.Violations),
		"valid", result.IsValid,
	)
	return &ValidateResult{Deck: d, Result: result}, nil
}

// Lookup returns the record for name, or nil when the catalog has none.
func (u *Catalog) Lookup(ctx context.Context, name string) (*card.Record, error) {
	if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	return u.catalogService.GetByName(ctx, name)
}

// Search lists records whose names start with prefix.
func (u *Catalog) Search(ctx context.Context, prefix string, limit int) ([]card.Record, error) {
	if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	return u.catalogService.SearchByPrefix(ctx, prefix, limit)
}

type Info struct {
	Path      string
	Count     int64
	LatestRun *database.ImportRunRecord
}

// Info summarizes the catalog.
func (u *Catalog) Info(ctx context.Context) (*Info, error) {
	if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	n, err := u.catalogService.Count(ctx)
	if err != nil {
		return nil, err
	}
	run, err := u.runService.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:      u.dbCtx.Path(),
		Count:     n,
		LatestRun: run,
	}, nil
}

// Reset empties the catalog and the import history.
func (u *Catalog) Reset(ctx context.Context) error {
	return u.catalogService.ResetAll(ctx)
}

// Add upserts records read from r, either one JSON object or an array of
// them. An array is written atomically.
func (u *Catalog) Add(ctx context.Context, r io.Reader) ([]card.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: no record given", card.ErrInvalidRecord)
	}

	var recs []card.Record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("%w: %w", card.ErrInvalidRecord, err)
		}
	} else {
		var rec card.Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("%w: %w", card.ErrInvalidRecord, err)
		}
		recs = append(recs, rec)
	}

	if err := u.catalogService.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	if len(recs) == 1 {
		err = u.catalogService.Upsert(ctx, recs[0])
	} else {
		err = u.catalogService.UpsertBatch(ctx, recs)
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}
