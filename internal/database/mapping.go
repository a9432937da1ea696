package database

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/choplin/deckcheck/internal/card"
	sqldb "github.com/choplin/deckcheck/internal/database/sqlc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CardParamsFromRecord normalizes and validates rec and encodes it into
// upsert parameters. Structured fields are stored as JSON text.
func CardParamsFromRecord(rec card.Record) (sqldb.UpsertCardParams, error) {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return sqldb.UpsertCardParams{}, err
	}

	colors, err := encodeList(rec.Colors)
	if err != nil {
		return sqldb.UpsertCardParams{}, fmt.Errorf("failed to encode colors: %w", err)
	}
	identity, err := encodeList(rec.ColorIdentity)
	if err != nil {
		return sqldb.UpsertCardParams{}, fmt.Errorf("failed to encode color identity: %w", err)
	}

	legalities := rec.Legalities
	if legalities == nil {
		legalities = map[string]card.Legality{}
	}
	legalitiesJSON, err := json.Marshal(legalities)
	if err != nil {
		return sqldb.UpsertCardParams{}, fmt.Errorf("failed to encode legalities: %w", err)
	}

	var imageRefs, faces string
	if len(rec.ImageRefs) > 0 {
		if imageRefs, err = json.MarshalToString(rec.ImageRefs); err != nil {
			return sqldb.UpsertCardParams{}, fmt.Errorf("failed to encode image refs: %w", err)
		}
	}
	if len(rec.Faces) > 0 {
		if faces, err = json.MarshalToString(rec.Faces); err != nil {
			return sqldb.UpsertCardParams{}, fmt.Errorf("failed to encode faces: %w", err)
		}
	}

	return sqldb.UpsertCardParams{
		NameKey:       rec.Key(),
		Name:          rec.Name,
		TypeLine:      rec.TypeLine,
		Colors:        colors,
		ColorIdentity: identity,
		Rarity:        rec.Rarity,
		Legalities:    string(legalitiesJSON),
		ManaCost:      nullString(rec.ManaCost),
		Cmc:           floatPtrToNullFloat64(rec.CMC),
		ImageRefs:     nullString(imageRefs),
		Faces:         nullString(faces),
	}, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	return json.MarshalToString(values)
}

// CardRecordFromRow decodes a cards row back into a structured record.
func CardRecordFromRow(row sqldb.Card) (*card.Record, error) {
	rec := &card.Record{
		Name:     row.Name,
		TypeLine: row.TypeLine,
		Rarity:   row.Rarity,
		ManaCost: optionalString(row.ManaCost),
		CMC:      optionalFloat64Ptr(row.Cmc),
	}

	if err := json.UnmarshalFromString(row.Colors, &rec.Colors); err != nil {
		return nil, fmt.Errorf("card %q: failed to decode colors: %w", row.Name, err)
	}
	if err := json.UnmarshalFromString(row.ColorIdentity, &rec.ColorIdentity); err != nil {
		return nil, fmt.Errorf("card %q: failed to decode color identity: %w", row.Name, err)
	}
	if err := json.UnmarshalFromString(row.Legalities, &rec.Legalities); err != nil {
		return nil, fmt.Errorf("card %q: failed to decode legalities: %w", row.Name, err)
	}
	if row.ImageRefs.Valid {
		if err := json.UnmarshalFromString(row.ImageRefs.String, &rec.ImageRefs); err != nil {
			return nil, fmt.Errorf("card %q: failed to decode image refs: %w", row.Name, err)
		}
	}
	if row.Faces.Valid {
		if err := json.UnmarshalFromString(row.Faces.String, &rec.Faces); err != nil {
			return nil, fmt.Errorf("card %q: failed to decode faces: %w", row.Name, err)
		}
	}

	return rec, nil
}

// ImportRunRecordFromRow converts an import_runs row.
func ImportRunRecordFromRow(row sqldb.ImportRun) ImportRunRecord {
	return ImportRunRecord{
		ID:         row.ID,
		SourcePath: row.SourcePath,
		SourceSize: row.SourceSize,
		Checksum:   optionalString(row.Checksum),
		Strategy:   row.Strategy,
		Status:     ImportRunStatus(row.Status),
		Imported:   row.Imported,
		Skipped:    row.Skipped,
		Error:      optionalString(row.Error),
		StartedAt:  time.UnixMilli(row.StartedAt),
		FinishedAt: optionalTime(row.FinishedAt),
	}
}

// ImportRunInsertParams builds the row written when a run starts.
func ImportRunInsertParams(run ImportRunRecord) sqldb.InsertImportRunParams {
	return sqldb.InsertImportRunParams{
		ID:         run.ID,
		SourcePath: run.SourcePath,
		Status:     string(run.Status),
		StartedAt:  unixMillis(run.StartedAt),
	}
}

// ImportRunFinishParams builds the update written when a run ends.
func ImportRunFinishParams(run ImportRunRecord) sqldb.FinishImportRunParams {
	return sqldb.FinishImportRunParams{
		Status:     string(run.Status),
		SourceSize: run.SourceSize,
		Strategy:   run.Strategy,
		Checksum:   nullString(run.Checksum),
		Imported:   run.Imported,
		Skipped:    run.Skipped,
		Error:      nullString(run.Error),
		FinishedAt: nullUnixMillis(run.FinishedAt),
		ID:         run.ID,
	}
}
