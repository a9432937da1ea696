// Package rules checks a deck's card counts against a format's construction
// rules, using the catalog for card data.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/logging"
)

// Severity grades a violation. Only errors make a deck invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one failed or unverifiable check.
type Violation struct {
	RuleID   string   `json:"ruleId"`
	RuleName string   `json:"ruleName"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Cards    []string `json:"cards,omitempty"`
}

// Lookup is read access to the catalog. A miss is (nil, nil).
type Lookup interface {
	GetByName(ctx context.Context, name string) (*card.Record, error)
}

// Input is what every rule sees. Lookup is nil when the catalog is unavailable.
type Input struct {
	Counts map[string]int
	Lookup Lookup
	Format Format
}

// names returns the deck's card keys in a stable order.
func (in Input) names() []string {
	names := make([]string, 0, len(in.Counts))
	for name := range in.Counts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// record looks name up, treating lookup failures as misses.
func (in Input) record(ctx context.Context, name string) *card.Record {
	if in.Lookup == nil {
		return nil
	}
	rec, err := in.Lookup.GetByName(ctx, name)
	if err != nil {
		return nil
	}
	return rec
}

func displayName(rec *card.Record, key string) string {
	if rec != nil && rec.Name != "" {
		return rec.Name
	}
	return key
}

// Rule is one independent check.
type Rule struct {
	ID    string
	Name  string
	Check func(ctx context.Context, in Input) []Violation
}

// DefaultRules is the fixed rule set, in evaluation order.
var DefaultRules = []Rule{
	{ID: "deck-size", Name: "Deck size", Check: checkDeckSize},
	{ID: "singleton", Name: "Singleton", Check: checkSingleton},
	{ID: "commander", Name: "Commander", Check: checkCommander},
	{ID: "format-legality", Name: "Format legality", Check: checkLegality},
}

// Result is the outcome of one evaluation.
type Result struct {
	Format     string         `json:"format"`
	IsValid    bool           `json:"isValid"`
	TotalCards int            `json:"totalCards"`
	Violations []Violation    `json:"violations"`
	CardCounts map[string]int `json:"cardCounts"`
}

// Errors returns the error-severity violations.
func (r *Result) Errors() []Violation {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning-severity violations.
func (r *Result) Warnings() []Violation {
	return r.bySeverity(SeverityWarning)
}

func (r *Result) bySeverity(s Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// Evaluator runs the rule set for one format.
type Evaluator struct {
	format Format
	lookup Lookup
	rules  []Rule
	logger *slog.Logger
}

// NewEvaluator builds an evaluator. A nil lookup means the catalog is
// unavailable; catalog-backed rules then report warnings instead of running.
func NewEvaluator(format Format, lookup Lookup, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		format: format,
		lookup: lookup,
		rules:  DefaultRules,
		logger: logging.OrDefault(logger),
	}
}

// Evaluate checks counts, a map from card key to copies.
func (e *Evaluator) Evaluate(ctx context.Context, counts map[string]int) *Result {
	in := Input{
		Counts: counts,
		Format: e.format,
	}
	if e.lookup != nil {
		in.Lookup = newCachedLookup(e.lookup, e.logger)
	}

	result := &Result{
		Format:     e.format.Name,
		CardCounts: counts,
		Violations: []Violation{},
	}
	for _, n := range counts {
		result.TotalCards += n
	}

	for _, rule := range e.rules {
		violations := rule.Check(ctx, in)
		for i := range violations {
			violations[i].RuleID = rule.ID
			violations[i].RuleName = rule.Name
		}
		result.Violations = append(result.Violations, violations...)
	}

	result.IsValid = len(result.Errors()) == 0
	return result
}

// cachedLookup memoizes lookups for one evaluation; several rules ask
// about the same names.
type cachedLookup struct {
	inner  Lookup
	logger *slog.Logger
	seen   map[string]*card.Record
}

func newCachedLookup(inner Lookup, logger *slog.Logger) *cachedLookup {
	return &cachedLookup{
		inner:  inner,
		logger: logger,
		seen:   make(map[string]*card.Record),
	}
}

func (c *cachedLookup) GetByName(ctx context.Context, name string) (*card.Record, error) {
	key := card.Key(name)
	if rec, ok := c.seen[key]; ok {
		return rec, nil
	}
	rec, err := c.inner.GetByName(ctx, name)
	if err != nil {
		c.logger.Warn("card lookup failed", "card", name, "error", err)
		rec = nil
	}
	c.seen[key] = rec
	return rec, nil
}

func checkDeckSize(_ context.Context, in Input) []Violation {
	total := 0
	for _, n := range in.Counts {
		total += n
	}
	if total == in.Format.DeckSize {
		return nil
	}
	return []Violation{{
		Severity: SeverityError,
		Message:  fmt.Sprintf("Deck has %d cards; %s requires exactly %d", total, in.Format.Name, in.Format.DeckSize),
	}}
}
