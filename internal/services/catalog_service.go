package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	sqldb "github.com/choplin/deckcheck/internal/database/sqlc"
)

// DefaultSearchLimit caps prefix searches when the caller passes no limit.
const DefaultSearchLimit = 20

// CatalogService reads and writes card records. Every write has committed
// by the time it returns.
type CatalogService struct {
	ctx *database.Context
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(ctx *database.Context) *CatalogService {
	return &CatalogService{
		ctx: ctx,
	}
}

// InitializeSchema creates the catalog schema if it is absent.
func (s *CatalogService) InitializeSchema(_ context.Context) error {
	return database.InitializeSchema(s.ctx)
}

// ResetAll drops and recreates the schema, leaving the catalog empty.
func (s *CatalogService) ResetAll(_ context.Context) error {
	return database.ResetAll(s.ctx)
}

// GetByName looks a card up by name, ignoring case. A missing card is
// reported as (nil, nil).
func (s *CatalogService) GetByName(ctx context.Context, name string) (*card.Record, error) {
	q, err := s.queries()
	if err != nil {
		return nil, err
	}

	key := card.Key(name)
	if key == "" {
		return nil, nil
	}

	row, err := q.GetCardByNameKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return database.CardRecordFromRow(row)
}

// Upsert inserts rec or replaces the record with the same case-folded name.
func (s *CatalogService) Upsert(ctx context.Context, rec card.Record) error {
	params, err := database.CardParamsFromRecord(rec)
	if err != nil {
		return err
	}

	q, err := s.queries()
	if err != nil {
		return err
	}

	if err := q.UpsertCard(ctx, params); err != nil {
		return fmt.Errorf("failed to upsert %q: %w", rec.Name, err)
	}
	return nil
}

// UpsertBatch applies recs in order inside one transaction. Either every
// record is visible afterwards or none is. Within a batch the last record
// for a name wins.
func (s *CatalogService) UpsertBatch(ctx context.Context, recs []card.Record) error {
	if len(recs) == 0 {
		if _, err := s.queries(); err != nil {
			return err
		}
		return nil
	}

	params := make([]sqldb.UpsertCardParams, 0, len(recs))
	for i, rec := range recs {
		p, err := database.CardParamsFromRecord(rec)
		if err != nil {
			return fmt.Errorf("batch record %d: %w", i, err)
		}
		params = append(params, p)
	}

	return s.withTx(ctx, func(txCtx context.Context, q *sqldb.Queries) error {
		if err := q.UpsertCards(txCtx, params); err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
		return nil
	})
}

// Count returns the number of live records.
func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	q, err := s.queries()
	if err != nil {
		return 0, err
	}
	return q.CountCards(ctx)
}

// SearchByPrefix lists records whose name starts with prefix, ignoring case,
// ordered by name.
func (s *CatalogService) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]card.Record, error) {
	q, err := s.queries()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	from := card.Key(prefix)
	rows, err := q.SearchCardsByKeyRange(ctx, sqldb.SearchCardsByKeyRangeParams{
		From:  from,
		To:    from + "\U0010FFFF",
		Limit: int64(limit),
	})
	if err != nil {
		return nil, err
	}

	records := make([]card.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := database.CardRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *CatalogService) withTx(ctx context.Context, fn func(context.Context, *sqldb.Queries) error) error {
	db, q, err := s.ctx.Handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(ctx, q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (s *CatalogService) queries() (*sqldb.Queries, error) {
	_, q, err := s.ctx.Handle()
	return q, err
}
