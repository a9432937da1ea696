package importer

import (
	"strings"

	"github.com/choplin/deckcheck/internal/card"
)

// Skip reasons reported in Stats.SkipReasons.
const (
	ReasonMissingName     = "missing name"
	ReasonMissingTypeLine = "missing type_line"
	ReasonNonPlayable     = "non-playable"
	ReasonDecodeFailed    = "decode failed"
	ReasonNotObject       = "not an object"
	ReasonWriteFailed     = "write failed"
)

// Type-line markers of cards that never belong in a deck.
var nonPlayableMarkers = []string{"token", "art card", "emblem"}

// sourceCard is the subset of a bulk card object the catalog keeps. Field
// names follow the Scryfall bulk files; the camelCase aliases cover
// MTGJSON-style exports.
type sourceCard struct {
	Name          string            `json:"name"`
	TypeLine      string            `json:"type_line"`
	Type          string            `json:"type"`
	Colors        []string          `json:"colors"`
	ColorIdentity []string          `json:"color_identity"`
	ColorIdAlias  []string          `json:"colorIdentity"`
	Rarity        string            `json:"rarity"`
	Legalities    map[string]string `json:"legalities"`
	ManaCost      *string           `json:"mana_cost"`
	ManaCostAlias *string           `json:"manaCost"`
	CMC           *float64          `json:"cmc"`
	ManaValue     *float64          `json:"manaValue"`
	ImageURIs     map[string]string `json:"image_uris"`
	CardFaces     []sourceFace      `json:"card_faces"`
}

type sourceFace struct {
	Name      string            `json:"name"`
	ImageURIs map[string]string `json:"image_uris"`
}

// outcome is the per-record result: a record to write, or a skip reason.
type outcome struct {
	record card.Record
	skip   string
}

func skipped(reason string) outcome {
	return outcome{skip: reason}
}

func (o outcome) ok() bool {
	return o.skip == ""
}

// convert decodes one raw object and applies the import filter.
func convert(raw []byte) outcome {
	var src sourceCard
	if err := json.Unmarshal(raw, &src); err != nil {
		return skipped(ReasonDecodeFailed)
	}

	name := strings.TrimSpace(src.Name)
	if name == "" {
		return skipped(ReasonMissingName)
	}

	typeLine := strings.TrimSpace(firstNonEmpty(src.TypeLine, src.Type))
	if typeLine == "" {
		return skipped(ReasonMissingTypeLine)
	}

	lowered := strings.ToLower(typeLine)
	for _, marker := range nonPlayableMarkers {
		if strings.Contains(lowered, marker) {
			return skipped(ReasonNonPlayable)
		}
	}

	identity := src.ColorIdentity
	if identity == nil {
		identity = src.ColorIdAlias
	}
	manaCost := src.ManaCost
	if manaCost == nil {
		manaCost = src.ManaCostAlias
	}
	cmc := src.CMC
	if cmc == nil {
		cmc = src.ManaValue
	}
	if cmc != nil && *cmc < 0 {
		cmc = nil
	}

	rec := card.Record{
		Name:          name,
		TypeLine:      typeLine,
		Colors:        normalizeColors(src.Colors),
		ColorIdentity: normalizeColors(identity),
		Rarity:        strings.ToLower(strings.TrimSpace(src.Rarity)),
		Legalities:    card.NormalizeLegalities(src.Legalities),
		CMC:           cmc,
		ImageRefs:     normalizeRefs(src.ImageURIs),
	}
	if manaCost != nil {
		rec.ManaCost = *manaCost
	}
	for _, face := range src.CardFaces {
		if strings.TrimSpace(face.Name) == "" {
			continue
		}
		rec.Faces = append(rec.Faces, card.Face{
			Name:      face.Name,
			ImageRefs: normalizeRefs(face.ImageURIs),
		})
	}

	return outcome{record: rec}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalizeColors(colors []string) []string {
	out := make([]string, 0, len(colors))
	for _, c := range colors {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func normalizeRefs(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for size, uri := range src {
		if uri != "" {
			out[size] = uri
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
