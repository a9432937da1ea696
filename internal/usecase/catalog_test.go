package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/importer"
	"github.com/choplin/deckcheck/internal/rules"
)

const bulkSource = `[
  {"name": "Sol Ring", "type_line": "Artifact", "rarity": "uncommon", "legalities": {"commander": "legal"}},
  {"name": "Lightning Bolt", "type_line": "Instant", "rarity": "common", "legalities": {"commander": "legal"}},
  {"name": "Plains", "type_line": "Basic Land — Plains", "rarity": "common", "legalities": {"commander": "legal"}},
  {"name": "Soldier", "type_line": "Token Creature — Soldier"}
]`

func setupCatalog(t *testing.T) (*database.Context, *Catalog) {
	t.Helper()
	dbCtx, err := database.Connect(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(func() {
		_ = database.CloseDatabase(dbCtx)
	})
	return dbCtx, NewCatalog(dbCtx, nil)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func importBulk(t *testing.T, uc *Catalog) *ImportResult {
	t.Helper()
	res, err := uc.Import(context.Background(), ImportInput{
		Path:    writeFile(t, "cards.json", bulkSource),
		Options: importer.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return res
}

func TestImportRecordsRun(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	res := importBulk(t, uc)
	if res.Stats.Imported != 3 || res.Stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}

	info, err := uc.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Count != 3 {
		t.Fatalf("expected 3 cards, got %d", info.Count)
	}
	run := info.LatestRun
	if run == nil || run.ID != res.RunID {
		t.Fatalf("expected latest run %s, got %+v", res.RunID, run)
	}
	if run.Status != database.ImportCompleted || run.Imported != 3 || run.Skipped != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Strategy != string(importer.StrategyLoadAll) || run.Checksum == "" || run.SourceSize == 0 {
		t.Fatalf("expected source details on run, got %+v", run)
	}
}

func TestImportFailureIsRecorded(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	_, err := uc.Import(ctx, ImportInput{
		Path:    filepath.Join(t.TempDir(), "missing.json"),
		Options: importer.DefaultOptions(),
	})
	if !errors.Is(err, importer.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}

	info, err := uc.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.LatestRun == nil || info.LatestRun.Status != database.ImportFailed || info.LatestRun.Error == "" {
		t.Fatalf("expected failed run, got %+v", info.LatestRun)
	}
}

func TestImportWithReset(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	if _, err := uc.Add(ctx, strings.NewReader(`{"name": "Black Lotus", "type_line": "Artifact"}`)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := uc.Import(ctx, ImportInput{
		Path:    writeFile(t, "cards.json", bulkSource),
		Reset:   true,
		Options: importer.DefaultOptions(),
	}); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	got, err := uc.Lookup(ctx, "black lotus")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected reset to drop earlier records, got %+v", got)
	}
}

func TestValidateEmptyCatalog(t *testing.T) {
	_, uc := setupCatalog(t)

	_, err := uc.Validate(context.Background(), ValidateInput{
		Deck:   "1 Sol Ring",
		Format: rules.StandardCommander,
	})
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestValidateScenario(t *testing.T) {
	_, uc := setupCatalog(t)
	importBulk(t, uc)

	res, err := uc.Validate(context.Background(), ValidateInput{
		Deck:   "1 Sol Ring\n4 Lightning Bolt\n12 Plains",
		Format: rules.StandardCommander,
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	result := res.Result
	if result.IsValid || result.TotalCards != 17 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var sizeErr, boltErr, plainsErr bool
	for _, v := range result.Violations {
		switch v.RuleID {
		case "deck-size":
			sizeErr = strings.Contains(v.Message, "17 cards")
		case "singleton":
			if strings.Contains(v.Message, "Lightning Bolt") && strings.Contains(v.Message, "4 copies") {
				boltErr = true
			}
			if strings.Contains(v.Message, "Plains") {
				plainsErr = true
			}
		}
	}
	if !sizeErr || !boltErr || plainsErr {
		t.Fatalf("unexpected violations: %+v", result.Violations)
	}
	if res.Deck.Total != 17 {
		t.Fatalf("expected parsed total 17, got %d", res.Deck.Total)
	}
}

func TestValidateParseError(t *testing.T) {
	_, uc := setupCatalog(t)
	importBulk(t, uc)

	_, err := uc.Validate(context.Background(), ValidateInput{
		Deck:   "0 Sol Ring",
		Format: rules.StandardCommander,
	})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateClosedStore(t *testing.T) {
	dbCtx, uc := setupCatalog(t)
	importBulk(t, uc)
	if err := dbCtx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := uc.Validate(context.Background(), ValidateInput{Deck: "1 Sol Ring", Format: rules.StandardCommander})
	if !errors.Is(err, database.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestAdd(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	recs, err := uc.Add(ctx, strings.NewReader(`[
		{"name": "Relentless Rats", "type_line": "Creature — Rat"},
		{"name": "Atraxa, Praetors' Voice", "type_line": "Legendary Creature — Phyrexian Angel Horror"}
	]`))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	got, err := uc.Lookup(ctx, "ATRAXA, PRAETORS' VOICE")
	if err != nil || got == nil {
		t.Fatalf("Lookup failed: %v, %v", got, err)
	}

	matches, err := uc.Search(ctx, "rel", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Relentless Rats" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	inputs := []string{
		``,
		`{"name": "Sol Ring"}`,
		`[{"name": "Sol Ring", "type_line": "Artifact"}, {"type_line": "Instant"}]`,
		`{"name": `,
	}
	for _, in := range inputs {
		if _, err := uc.Add(ctx, strings.NewReader(in)); !errors.Is(err, card.ErrInvalidRecord) {
			t.Fatalf("Add(%q): expected ErrInvalidRecord, got %v", in, err)
		}
	}

	info, err := uc.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Count != 0 {
		t.Fatalf("rejected input must not be written, count=%d", info.Count)
	}
}

func TestAddNormalizesLegalities(t *testing.T) {
	_, uc := setupCatalog(t)
	ctx := context.Background()

	if _, err := uc.Add(ctx, strings.NewReader(`{"name": "Tolarian Academy", "type_line": "Legendary Land", "legalities": {"Commander": "Banned"}}`)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := uc.Lookup(ctx, "tolarian academy")
	if err != nil || got == nil {
		t.Fatalf("Lookup failed: %v, %v", got, err)
	}
	if got.Legalities["commander"] != card.Banned {
		t.Fatalf("expected normalized legality, got %v", got.Legalities)
	}

	res, err := uc.Validate(ctx, ValidateInput{Deck: "1 Tolarian Academy", Format: rules.StandardCommander})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	banned := 0
	for _, v := range res.Result.Violations {
		if v.RuleID == "format-legality" && v.Severity == rules.SeverityError {
			banned++
		}
	}
	if banned != 1 {
		t.Fatalf("expected one legality violation, got %+v", res.Result.Violations)
	}
}
