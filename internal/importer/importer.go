// Package importer loads a bulk card dataset into the catalog under a fixed
// memory budget.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/filesystem"
	"github.com/choplin/deckcheck/internal/logging"
)

var (
	// ErrSourceNotFound indicates the source path is not a readable file.
	ErrSourceNotFound = errors.New("importer: source not found")
	// ErrMalformedSource indicates the source is not an array or stream of objects.
	ErrMalformedSource = errors.New("importer: malformed source")
)

// Strategy names how a source is read.
type Strategy string

const (
	// StrategyLoadAll parses the whole source before writing.
	StrategyLoadAll Strategy = "load-all"
	// StrategyStream parses one record at a time.
	StrategyStream Strategy = "stream"
)

const (
	DefaultStreamThreshold int64 = 100_000_000
	DefaultBatchSize             = 500
	DefaultProgressEvery         = 1000
	DefaultGCEvery               = 5000
)

// Catalog is the part of the catalog store the importer writes through.
type Catalog interface {
	InitializeSchema(ctx context.Context) error
	Upsert(ctx context.Context, rec card.Record) error
	UpsertBatch(ctx context.Context, recs []card.Record) error
}

// Options tunes an import. Sources at or above StreamThreshold bytes are
// streamed; a zero threshold streams everything. GCEvery of zero disables
// the periodic collection request.
type Options struct {
	StreamThreshold int64
	BatchSize       int
	ProgressEvery   int
	GCEvery         int
	Progress        func(Stats)
	Logger          *slog.Logger
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		StreamThreshold: DefaultStreamThreshold,
		BatchSize:       DefaultBatchSize,
		ProgressEvery:   DefaultProgressEvery,
		GCEvery:         DefaultGCEvery,
	}
}

// Stats summarizes one run. Counters cover only that run.
type Stats struct {
	Imported    int
	Skipped     int
	Processed   int
	SkipReasons map[string]int
	Strategy    Strategy
	SourceSize  int64
	Compressed  bool
	Checksum    string
	Duration    time.Duration
}

func (s *Stats) skip(reason string) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[string]int)
	}
	s.SkipReasons[reason]++
}

// Importer writes a bulk source into a Catalog.
type Importer struct {
	catalog Catalog
	opts    Options
	logger  *slog.Logger
}

// New creates an Importer. Non-positive batch size or progress cadence fall
// back to the defaults.
func New(catalog Catalog, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.GCEvery < 0 {
		opts.GCEvery = 0
	}
	return &Importer{
		catalog: catalog,
		opts:    opts,
		logger:  logging.OrDefault(opts.Logger),
	}
}

// Import initializes the catalog schema and loads every acceptable record
// from path. The returned stats are never nil, also when an error ends the
// run early.
func (im *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	started := time.Now()
	stats := &Stats{}

	if err := im.catalog.InitializeSchema(ctx); err != nil {
		return stats, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	src, err := filesystem.Open(path)
	if err != nil {
		if errors.Is(err, filesystem.ErrBadCompression) {
			return stats, fmt.Errorf("%w: %w", ErrMalformedSource, err)
		}
		return stats, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	defer func() {
		_ = src.Close()
	}()

	stats.SourceSize = src.Size
	stats.Compressed = src.Compressed
	stats.Strategy = im.selectStrategy(src)

	im.logger.Info("import started",
		"source", path,
		"size", humanize.Bytes(uint64(max(src.Size, 0))),
		"compressed", src.Compressed,
		"strategy", stats.Strategy,
	)

	var it recordIterator
	if stats.Strategy == StrategyLoadAll {
		it, err = loadAll(src)
	} else {
		it, err = newStreamIterator(src)
	}
	if err != nil {
		return im.finish(stats, started, err)
	}

	runErr := im.run(ctx, it, stats)
	if runErr == nil {
		sum, err := src.Checksum()
		if err != nil {
			im.logger.Warn("failed to checksum source", "source", path, "error", err)
		}
		stats.Checksum = sum
	}
	return im.finish(stats, started, runErr)
}

func (im *Importer) selectStrategy(src *filesystem.Source) Strategy {
	// The decoded size of a compressed source is unknown.
	if src.Compressed || src.Size >= im.opts.StreamThreshold {
		return StrategyStream
	}
	return StrategyLoadAll
}

func (im *Importer) finish(stats *Stats, started time.Time, err error) (*Stats, error) {
	stats.Duration = time.Since(started)

	attrs := []any{
		"imported", stats.Imported,
		"skipped", stats.Skipped,
		"processed", humanize.Comma(int64(stats.Processed)),
		"strategy", stats.Strategy,
		"duration", stats.Duration.Round(time.Millisecond),
	}
	if err != nil {
		im.logger.Error("import failed", append(attrs, "error", err)...)
		return stats, err
	}
	im.logger.Info("import finished", attrs...)
	return stats, nil
}

// run pulls records one at a time, buffering accepted ones into batches.
// The iterator is not advanced while a batch is being written.
func (im *Importer) run(ctx context.Context, it recordIterator, stats *Stats) error {
	pending := make([]card.Record, 0, im.opts.BatchSize)
	progress := rate.Sometimes{Every: im.opts.ProgressEvery}
	var gc *rate.Sometimes
	if im.opts.GCEvery > 0 {
		gc = &rate.Sometimes{Every: im.opts.GCEvery}
	}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := im.writeBatch(ctx, pending, stats)
		clear(pending)
		pending = pending[:0]
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		el, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Records parsed before the source broke are still written.
			if flushErr := flush(); flushErr != nil {
				return errors.Join(err, flushErr)
			}
			return err
		}

		stats.Processed++
		res := im.evaluate(el)
		if res.ok() {
			pending = append(pending, res.record)
		} else {
			stats.skip(res.skip)
		}

		if len(pending) >= im.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}

		progress.Do(func() {
			im.logger.Info("import progress",
				"processed", humanize.Comma(int64(stats.Processed)),
				"imported", stats.Imported,
				"skipped", stats.Skipped,
			)
			if im.opts.Progress != nil {
				im.opts.Progress(*stats)
			}
		})
		if gc != nil {
			gc.Do(runtime.GC)
		}
	}

	return flush()
}

func (im *Importer) evaluate(el element) outcome {
	if el.kind != jsoniter.ObjectValue {
		im.logger.Debug("skipping record", "reason", ReasonNotObject)
		return skipped(ReasonNotObject)
	}

	res := convert(el.raw)
	if !res.ok() {
		im.logger.Debug("skipping record", "reason", res.skip)
	}
	return res
}

// writeBatch writes recs as one unit. When the batch fails for a reason
// other than the store itself, it is replayed one record at a time so only
// the offending records are skipped.
func (im *Importer) writeBatch(ctx context.Context, recs []card.Record, stats *Stats) error {
	err := im.catalog.UpsertBatch(ctx, recs)
	if err == nil {
		stats.Imported += len(recs)
		return nil
	}
	if fatalWriteError(ctx, err) {
		return err
	}

	im.logger.Warn("batch write failed, retrying records individually", "records", len(recs), "error", err)
	for _, rec := range recs {
		if err := im.catalog.Upsert(ctx, rec); err != nil {
			if fatalWriteError(ctx, err) {
				return err
			}
			im.logger.Warn("skipping record", "name", rec.Name, "reason", ReasonWriteFailed, "error", err)
			stats.skip(ReasonWriteFailed)
			continue
		}
		stats.Imported++
	}
	return nil
}

func fatalWriteError(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, database.ErrStoreClosed) ||
		errors.Is(err, database.ErrStoreUnavailable)
}
