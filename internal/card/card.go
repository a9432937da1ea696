// Package card defines the catalog record for a single card and the
// case-insensitive identity key shared by the store and the deck parser.
package card

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidRecord indicates a record is missing a required field.
var ErrInvalidRecord = errors.New("card: invalid record")

// Legality is the status of a card in one format.
type Legality string

const (
	Legal      Legality = "legal"
	NotLegal   Legality = "not_legal"
	Restricted Legality = "restricted"
	Banned     Legality = "banned"
)

// ParseLegality maps a source status string onto a known Legality.
func ParseLegality(value string) (Legality, bool) {
	switch l := Legality(strings.ToLower(strings.TrimSpace(value))); l {
	case Legal, NotLegal, Restricted, Banned:
		return l, true
	default:
		return "", false
	}
}

// Face is one side of a multi-faced card. Faces are display data only.
type Face struct {
	Name      string            `json:"name"`
	ImageRefs map[string]string `json:"image_refs,omitempty"`
}

// Record is one catalog entry.
type Record struct {
	Name          string              `json:"name"`
	TypeLine      string              `json:"type_line"`
	Colors        []string            `json:"colors"`
	ColorIdentity []string            `json:"color_identity"`
	Rarity        string              `json:"rarity"`
	Legalities    map[string]Legality `json:"legalities"`
	ManaCost      string              `json:"mana_cost,omitempty"`
	CMC           *float64            `json:"cmc,omitempty"`
	ImageRefs     map[string]string   `json:"image_refs,omitempty"`
	Faces         []Face              `json:"faces,omitempty"`
}

// Key returns the identity key of the record's name.
func (r Record) Key() string {
	return Key(r.Name)
}

// Validate reports ErrInvalidRecord when the name or type line is blank.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.TypeLine) == "" {
		return fmt.Errorf("%w: missing type line for %q", ErrInvalidRecord, r.Name)
	}
	return nil
}

// LegalityIn returns the record's status in format. The second result is
// false when the format has no entry, which means the status is unknown.
func (r Record) LegalityIn(format string) (Legality, bool) {
	if r.Legalities == nil {
		return "", false
	}
	l, ok := r.Legalities[strings.ToLower(format)]
	return l, ok
}

// Normalize returns a copy of r with the name and type line trimmed and
// legalities reduced to lower-case format keys with known statuses.
func (r Record) Normalize() Record {
	r.Name = strings.TrimSpace(r.Name)
	r.TypeLine = strings.TrimSpace(r.TypeLine)
	if r.Legalities != nil {
		raw := make(map[string]string, len(r.Legalities))
		for format, status := range r.Legalities {
			raw[format] = string(status)
		}
		r.Legalities = NormalizeLegalities(raw)
	}
	return r
}

// NormalizeLegalities lower-cases format names and drops statuses outside
// the known set, which leaves them unknown.
func NormalizeLegalities(src map[string]string) map[string]Legality {
	out := make(map[string]Legality, len(src))
	for format, status := range src {
		key := strings.ToLower(strings.TrimSpace(format))
		if key == "" {
			continue
		}
		if l, ok := ParseLegality(status); ok {
			out[key] = l
		}
	}
	return out
}

// TypeLineContains reports whether the type line contains word, ignoring case.
func (r Record) TypeLineContains(word string) bool {
	return strings.Contains(strings.ToLower(r.TypeLine), strings.ToLower(word))
}

// Key folds a card name into its identity key. Names that differ only in
// case, surrounding space or Unicode composition map to the same key.
func Key(name string) string {
	// cases.Caser is stateful, so a fresh one is built per call.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
