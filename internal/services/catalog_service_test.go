package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
)

func setupServiceDB(t *testing.T) *database.Context {
	t.Helper()
	ctx, err := database.CreateDatabase(":memory:")
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}

	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func legendary(name string) card.Record {
	return card.Record{
		Name:          name,
		TypeLine:      "Legendary Creature — Angel",
		Colors:        []string{"W"},
		ColorIdentity: []string{"W"},
		Rarity:        "mythic",
		Legalities:    map[string]card.Legality{"commander": card.Legal},
	}
}

func TestUpsertThenGetByAnyCase(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	if err := svc.Upsert(ctx, legendary("Avacyn, Angel of Hope")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	for _, name := range []string{"Avacyn, Angel of Hope", "avacyn, angel of hope", "AVACYN, ANGEL OF HOPE", "  Avacyn, angel of Hope "} {
		got, err := svc.GetByName(ctx, name)
		if err != nil {
			t.Fatalf("GetByName(%q) failed: %v", name, err)
		}
		if got == nil {
			t.Fatalf("GetByName(%q) returned nil", name)
		}
		if got.Name != "Avacyn, Angel of Hope" || got.TypeLine != "Legendary Creature — Angel" {
			t.Fatalf("unexpected record for %q: %#v", name, got)
		}
		if got.Legalities["commander"] != card.Legal || len(got.ColorIdentity) != 1 {
			t.Fatalf("structured fields not decoded: %#v", got)
		}
	}
}

func TestGetByNameMissingIsNotAnError(t *testing.T) {
	dbCtx := setupServiceDB(t)
	svc := NewCatalogService(dbCtx)

	got, err := svc.GetByName(context.Background(), "Nonexistent Card")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %#v", got)
	}
}

func TestUpsertReplacesAcrossCase(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	if err := svc.Upsert(ctx, card.Record{Name: "sol ring", TypeLine: "Artifact", Rarity: "common"}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := svc.Upsert(ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact", Rarity: "uncommon"}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one record per folded name, got %d", count)
	}

	got, _ := svc.GetByName(ctx, "SOL RING")
	if got == nil || got.Name != "Sol Ring" || got.Rarity != "uncommon" {
		t.Fatalf("expected last write to win, got %#v", got)
	}
}

func TestUpsertRejectsInvalidRecord(t *testing.T) {
	dbCtx := setupServiceDB(t)
	svc := NewCatalogService(dbCtx)

	tests := []card.Record{
		{TypeLine: "Artifact"},
		{Name: "Sol Ring"},
	}
	for _, rec := range tests {
		if err := svc.Upsert(context.Background(), rec); !errors.Is(err, card.ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord for %#v, got %v", rec, err)
		}
	}
}

func TestUpsertBatchLastOccurrenceWins(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	batch := []card.Record{
		{Name: "Lightning Bolt", TypeLine: "Instant", Rarity: "common"},
		{Name: "Counterspell", TypeLine: "Instant", Rarity: "common"},
		{Name: "LIGHTNING BOLT", TypeLine: "Instant", Rarity: "uncommon"},
	}
	if err := svc.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	count, _ := svc.Count(ctx)
	if count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}

	got, err := svc.GetByName(ctx, "lightning bolt")
	if err != nil || got == nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.Name != "LIGHTNING BOLT" || got.Rarity != "uncommon" {
		t.Fatalf("expected last record in batch, got %#v", got)
	}
}

func TestUpsertBatchIsAtomic(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	if err := svc.Upsert(ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact", Rarity: "uncommon"}); err != nil {
		t.Fatalf("seed Upsert failed: %v", err)
	}

	batch := []card.Record{
		{Name: "Sol Ring", TypeLine: "Artifact", Rarity: "special"},
		{Name: "Broken", TypeLine: ""},
	}
	if err := svc.UpsertBatch(ctx, batch); !errors.Is(err, card.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}

	count, _ := svc.Count(ctx)
	if count != 1 {
		t.Fatalf("expected prior state to be unchanged, got %d records", count)
	}
	got, _ := svc.GetByName(ctx, "Sol Ring")
	if got == nil || got.Rarity != "uncommon" {
		t.Fatalf("expected original record to remain, got %#v", got)
	}
}

func TestUpsertBatchRollsBackOnCancelledContext(t *testing.T) {
	dbCtx := setupServiceDB(t)
	svc := NewCatalogService(dbCtx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.UpsertBatch(ctx, []card.Record{{Name: "Sol Ring", TypeLine: "Artifact"}})
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}

	count, err := svc.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing to be written, got %d", count)
	}
}

func TestSearchByPrefix(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	batch := []card.Record{
		{Name: "Sol Ring", TypeLine: "Artifact"},
		{Name: "Solemn Simulacrum", TypeLine: "Artifact Creature — Golem"},
		{Name: "Soul Warden", TypeLine: "Creature — Human Cleric"},
		{Name: "Swords to Plowshares", TypeLine: "Instant"},
	}
	if err := svc.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	got, err := svc.SearchByPrefix(ctx, "SOL", 0)
	if err != nil {
		t.Fatalf("SearchByPrefix failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Sol Ring" || got[1].Name != "Solemn Simulacrum" {
		t.Fatalf("unexpected search results: %#v", got)
	}

	limited, err := svc.SearchByPrefix(ctx, "s", 3)
	if err != nil {
		t.Fatalf("SearchByPrefix failed: %v", err)
	}
	if len(limited) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(limited))
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	dbCtx, err := database.CreateDatabase(path)
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	if err := svc.Upsert(ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := dbCtx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := svc.GetByName(ctx, "Sol Ring"); !errors.Is(err, database.ErrStoreClosed) {
		t.Fatalf("GetByName: expected ErrStoreClosed, got %v", err)
	}
	if err := svc.Upsert(ctx, card.Record{Name: "Mana Crypt", TypeLine: "Artifact"}); !errors.Is(err, database.ErrStoreClosed) {
		t.Fatalf("Upsert: expected ErrStoreClosed, got %v", err)
	}
	if err := svc.UpsertBatch(ctx, []card.Record{{Name: "Mana Crypt", TypeLine: "Artifact"}}); !errors.Is(err, database.ErrStoreClosed) {
		t.Fatalf("UpsertBatch: expected ErrStoreClosed, got %v", err)
	}
	if _, err := svc.Count(ctx); !errors.Is(err, database.ErrStoreClosed) {
		t.Fatalf("Count: expected ErrStoreClosed, got %v", err)
	}

	if err := dbCtx.Reopen(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	t.Cleanup(func() { _ = dbCtx.Close() })

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count after reopen failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected persisted record after reopen, got %d", count)
	}
}

func TestResetAllEmptiesCatalog(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewCatalogService(dbCtx)

	if err := svc.Upsert(ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := svc.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll failed: %v", err)
	}

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty catalog, got %d", count)
	}
}
