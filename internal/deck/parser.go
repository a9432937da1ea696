// Package deck turns free-form deck list text into a card-name multiset.
package deck

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/choplin/deckcheck/internal/card"
)

var (
	quantityLine = regexp.MustCompile(`^(-?\d+)\s*[xX]?\s+(.+)$`)
	// Set code and collector number exported by deck builders: "(C21) 263".
	printingSuffix = regexp.MustCompile(`\s+\([A-Za-z0-9]{2,6}\)(\s+[A-Za-z0-9-]+)?$`)
	foilMarker     = regexp.MustCompile(`\s+\*[A-Za-z]+\*$`)
)

// MaxQuantity is the largest count accepted on one line.
const MaxQuantity = 10_000

var sectionHeaders = map[string]bool{
	"deck":       true,
	"main":       true,
	"mainboard":  true,
	"commander":  true,
	"commanders": true,
	"companion":  true,
	"sideboard":  true,
	"maybeboard": true,
}

// Deck is the parsed multiset. Counts is keyed by card.Key.
type Deck struct {
	Counts map[string]int
	Names  map[string]string
	Total  int
}

// DisplayName returns the first spelling seen for key.
func (d *Deck) DisplayName(key string) string {
	if name, ok := d.Names[key]; ok {
		return name
	}
	return key
}

// ParseError reports an unusable line.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parse parses deck text.
func Parse(text string) (*Deck, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseReader parses deck text line by line. Lines are "N Name", "Nx Name"
// or a bare name counting once. Blank lines, "#" and "//" comment lines and
// section headers are ignored.
func ParseReader(r io.Reader) (*Deck, error) {
	d := &Deck{
		Counts: make(map[string]int),
		Names:  make(map[string]string),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		name, qty, ok, err := parseLine(raw)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: raw, Msg: err.Error()}
		}
		if !ok {
			continue
		}

		key := card.Key(name)
		if _, seen := d.Names[key]; !seen {
			d.Names[key] = name
		}
		d.Counts[key] += qty
		d.Total += qty
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}

	return d, nil
}

func parseLine(raw string) (name string, qty int, ok bool, err error) {
	line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return "", 0, false, nil
	}
	// "//" is left alone here: split cards use it inside their names.
	if i := strings.Index(line, " #"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	header := strings.ToLower(strings.TrimSuffix(line, ":"))
	if strings.HasSuffix(line, ":") || sectionHeaders[header] {
		return "", 0, false, nil
	}

	qty = 1
	if m := quantityLine.FindStringSubmatch(line); m != nil {
		qty, err = strconv.Atoi(m[1])
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid quantity")
		}
		if qty <= 0 {
			return "", 0, false, fmt.Errorf("quantity must be positive")
		}
		if qty > MaxQuantity {
			return "", 0, false, fmt.Errorf("quantity exceeds %d", MaxQuantity)
		}
		line = m[2]
	}

	line = foilMarker.ReplaceAllString(line, "")
	line = printingSuffix.ReplaceAllString(line, "")
	name = strings.TrimSpace(line)
	if name == "" {
		return "", 0, false, fmt.Errorf("missing card name")
	}
	return name, qty, true, nil
}
