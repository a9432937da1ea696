package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/config"
)

func setupTestDB(t *testing.T) *Context {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("DECKCHECK_DIR", tmp)

	ctx, err := CreateDatabase("")
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}

	t.Cleanup(func() {
		if err := CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func TestDatabaseCreationAndSchema(t *testing.T) {
	ctx := setupTestDB(t)

	dbPath := filepath.Join(config.GetDataDir(), "catalog.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file to exist at %s: %v", dbPath, err)
	}
	if ctx.Path() != dbPath {
		t.Fatalf("expected context path %q, got %q", dbPath, ctx.Path())
	}

	for _, table := range []string{"cards", "import_runs"} {
		if !objectExists(t, ctx.DB, "table", table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	for _, index := range []string{"idx_cards_type_line", "idx_cards_legalities", "idx_cards_rarity"} {
		if !objectExists(t, ctx.DB, "index", index) {
			t.Fatalf("expected index %s to exist", index)
		}
	}
}

func TestInitializeSchemaIsIdempotent(t *testing.T) {
	ctx := setupTestDB(t)
	insertCard(t, ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"})

	for i := 0; i < 3; i++ {
		if err := InitializeSchema(ctx); err != nil {
			t.Fatalf("InitializeSchema call %d returned error: %v", i, err)
		}
	}

	assertCount(t, ctx.DB, "cards", 1)
}

func TestResetAllLeavesEmptyCatalog(t *testing.T) {
	ctx := setupTestDB(t)
	insertCard(t, ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"})
	insertCard(t, ctx, card.Record{Name: "Plains", TypeLine: "Basic Land — Plains"})
	assertCount(t, ctx.DB, "cards", 2)

	if err := ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll returned error: %v", err)
	}

	assertCount(t, ctx.DB, "cards", 0)
	assertCount(t, ctx.DB, "import_runs", 0)
	if !objectExists(t, ctx.DB, "index", "idx_cards_rarity") {
		t.Fatalf("expected indexes to be recreated")
	}
}

func TestConnectUnavailableLocation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	// The parent "directory" is a regular file, so nothing can be created under it.
	_, err := Connect(filepath.Join(blocker, "catalog.db"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestClosedContextRejectsOperationsUntilReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx, err := CreateDatabase(path)
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}
	insertCard(t, ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"})

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}

	if _, _, err := ctx.Handle(); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from Handle, got %v", err)
	}
	if err := InitializeSchema(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from InitializeSchema, got %v", err)
	}
	if err := ResetAll(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from ResetAll, got %v", err)
	}

	if err := ctx.Reopen(); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })

	assertCount(t, ctx.DB, "cards", 1)
}

func TestMemoryDatabase(t *testing.T) {
	ctx, err := CreateDatabase(":memory:")
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })

	insertCard(t, ctx, card.Record{Name: "Sol Ring", TypeLine: "Artifact"})
	assertCount(t, ctx.DB, "cards", 1)
}

func TestCardMappingRoundTrip(t *testing.T) {
	cmc := 2.5
	rec := card.Record{
		Name:          "Odds // Ends",
		TypeLine:      "Instant // Instant",
		Colors:        []string{"U", "R"},
		ColorIdentity: []string{"U", "R"},
		Rarity:        "rare",
		Legalities:    map[string]card.Legality{"commander": card.Legal},
		ManaCost:      "{U}{R} // {3}{R}{W}",
		CMC:           &cmc,
		ImageRefs:     map[string]string{"small": "https://img/small.jpg"},
		Faces: []card.Face{
			{Name: "Odds"},
			{Name: "Ends", ImageRefs: map[string]string{"small": "https://img/ends.jpg"}},
		},
	}

	params, err := CardParamsFromRecord(rec)
	if err != nil {
		t.Fatalf("CardParamsFromRecord error: %v", err)
	}
	if params.NameKey != "odds // ends" {
		t.Fatalf("unexpected name key %q", params.NameKey)
	}

	ctx := setupTestDB(t)
	if err := ctx.Queries.UpsertCard(t.Context(), params); err != nil {
		t.Fatalf("UpsertCard error: %v", err)
	}
	row, err := ctx.Queries.GetCardByNameKey(t.Context(), params.NameKey)
	if err != nil {
		t.Fatalf("GetCardByNameKey error: %v", err)
	}
	got, err := CardRecordFromRow(row)
	if err != nil {
		t.Fatalf("CardRecordFromRow error: %v", err)
	}

	if got.Name != rec.Name || got.TypeLine != rec.TypeLine || got.ManaCost != rec.ManaCost {
		t.Fatalf("scalar fields differ: %#v", got)
	}
	if got.CMC == nil || *got.CMC != 2.5 {
		t.Fatalf("expected cmc 2.5, got %v", got.CMC)
	}
	if len(got.Colors) != 2 || got.Colors[0] != "U" || got.Colors[1] != "R" {
		t.Fatalf("expected ordered colors, got %v", got.Colors)
	}
	if got.Legalities["commander"] != card.Legal {
		t.Fatalf("expected structured legalities, got %v", got.Legalities)
	}
	if len(got.Faces) != 2 || got.Faces[1].ImageRefs["small"] != "https://img/ends.jpg" {
		t.Fatalf("expected faces to survive, got %#v", got.Faces)
	}
}

func TestCardParamsRejectInvalidRecord(t *testing.T) {
	if _, err := CardParamsFromRecord(card.Record{Name: "Sol Ring"}); !errors.Is(err, card.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestCardParamsNormalizeLegalities(t *testing.T) {
	params, err := CardParamsFromRecord(card.Record{
		Name:     "Tolarian Academy",
		TypeLine: "Legendary Land",
		Legalities: map[string]card.Legality{
			"Commander":   "Banned",
			" Oathbreaker": "suspended",
		},
	})
	if err != nil {
		t.Fatalf("CardParamsFromRecord error: %v", err)
	}
	if params.Legalities != `{"commander":"banned"}` {
		t.Fatalf("expected normalized legalities, got %s", params.Legalities)
	}
}

func insertCard(t *testing.T, ctx *Context, rec card.Record) {
	t.Helper()
	params, err := CardParamsFromRecord(rec)
	if err != nil {
		t.Fatalf("CardParamsFromRecord failed: %v", err)
	}
	if err := ctx.Queries.UpsertCard(t.Context(), params); err != nil {
		t.Fatalf("UpsertCard failed: %v", err)
	}
}

func objectExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("objectExists query failed for %s: %v", name, err)
	}
	return true
}

func assertCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("count query failed for %s: %v", table, err)
	}
	if count != expected {
		t.Fatalf("expected %s to have %d rows, got %d", table, expected, count)
	}
}
