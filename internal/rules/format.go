package rules

import (
	"fmt"
	"strings"

	"github.com/choplin/deckcheck/internal/card"
)

// Format is a deck-construction variant.
type Format struct {
	Name        string
	DeckSize    int
	LegalityKey string
	// CommanderKind describes eligible commanders in messages.
	CommanderKind string
	IsCommander   func(card.Record) bool
}

// StandardCommander is the 100-card singleton format led by a legendary
// creature or planeswalker.
var StandardCommander = Format{
	Name:          "standard-commander",
	DeckSize:      100,
	LegalityKey:   "commander",
	CommanderKind: "legendary creature or planeswalker",
	IsCommander: func(rec card.Record) bool {
		return rec.TypeLineContains("legendary") &&
			(rec.TypeLineContains("creature") || rec.TypeLineContains("planeswalker"))
	},
}

// PauperCommander is led by a creature printed at uncommon.
var PauperCommander = Format{
	Name:          "pauper-commander",
	DeckSize:      100,
	LegalityKey:   "paupercommander",
	CommanderKind: "uncommon creature",
	IsCommander: func(rec card.Record) bool {
		return rec.TypeLineContains("creature") && strings.EqualFold(rec.Rarity, "uncommon")
	},
}

var formats = []Format{StandardCommander, PauperCommander}

// FormatByName resolves a format flag value.
func FormatByName(name string) (Format, error) {
	for _, f := range formats {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("unknown format %q (valid values: %s)", name, strings.Join(FormatNames(), ", "))
}

// FormatNames lists the recognized format names.
func FormatNames() []string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Name)
	}
	return names
}
