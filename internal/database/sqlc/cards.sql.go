package sqldb

import (
	"context"
	"database/sql"
	"fmt"
)

const upsertCard = `INSERT INTO cards (
    name_key, name, type_line, colors, color_identity, rarity, legalities, mana_cost, cmc, image_refs, faces, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(name_key) DO UPDATE SET
    name = excluded.name,
    type_line = excluded.type_line,
    colors = excluded.colors,
    color_identity = excluded.color_identity,
    rarity = excluded.rarity,
    legalities = excluded.legalities,
    mana_cost = excluded.mana_cost,
    cmc = excluded.cmc,
    image_refs = excluded.image_refs,
    faces = excluded.faces,
    updated_at = CURRENT_TIMESTAMP`

type UpsertCardParams struct {
	NameKey       string
	Name          string
	TypeLine      string
	Colors        string
	ColorIdentity string
	Rarity        string
	Legalities    string
	ManaCost      sql.NullString
	Cmc           sql.NullFloat64
	ImageRefs     sql.NullString
	Faces         sql.NullString
}

func (arg UpsertCardParams) args() []any {
	return []any{
		arg.NameKey,
		arg.Name,
		arg.TypeLine,
		arg.Colors,
		arg.ColorIdentity,
		arg.Rarity,
		arg.Legalities,
		arg.ManaCost,
		arg.Cmc,
		arg.ImageRefs,
		arg.Faces,
	}
}

func (q *Queries) UpsertCard(ctx context.Context, arg UpsertCardParams) error {
	_, err := q.db.ExecContext(ctx, upsertCard, arg.args()...)
	return err
}

// UpsertCards runs every row through one prepared statement, in order.
func (q *Queries) UpsertCards(ctx context.Context, args []UpsertCardParams) error {
	stmt, err := q.db.PrepareContext(ctx, upsertCard)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, arg := range args {
		if _, err := stmt.ExecContext(ctx, arg.args()...); err != nil {
			return fmt.Errorf("row %d (%s): %w", i, arg.Name, err)
		}
	}
	return nil
}

const cardColumns = `name_key, name, type_line, colors, color_identity, rarity, legalities, mana_cost, cmc, image_refs, faces`

func scanCard(scanner interface{ Scan(dest ...any) error }) (Card, error) {
	var i Card
	err := scanner.Scan(
		&i.NameKey,
		&i.Name,
		&i.TypeLine,
		&i.Colors,
		&i.ColorIdentity,
		&i.Rarity,
		&i.Legalities,
		&i.ManaCost,
		&i.Cmc,
		&i.ImageRefs,
		&i.Faces,
	)
	return i, err
}

const getCardByNameKey = `SELECT ` + cardColumns + ` FROM cards WHERE name_key = ?`

func (q *Queries) GetCardByNameKey(ctx context.Context, nameKey string) (Card, error) {
	row := q.db.QueryRowContext(ctx, getCardByNameKey, nameKey)
	return scanCard(row)
}

const countCards = `SELECT COUNT(*) FROM cards`

func (q *Queries) CountCards(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCards)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const searchCardsByKeyRange = `SELECT ` + cardColumns + ` FROM cards
WHERE name_key >= ? AND name_key < ?
ORDER BY name_key
LIMIT ?`

type SearchCardsByKeyRangeParams struct {
	From  string
	To    string
	Limit int64
}

func (q *Queries) SearchCardsByKeyRange(ctx context.Context, arg SearchCardsByKeyRangeParams) ([]Card, error) {
	rows, err := q.db.QueryContext(ctx, searchCardsByKeyRange, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Card
	for rows.Next() {
		i, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
