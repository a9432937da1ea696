package rules

import (
	"context"
	"fmt"

	"github.com/choplin/deckcheck/internal/card"
)

// unlimited marks an allow-listed card with no copy limit.
const unlimited = 0

// multiCopyAllowed lists cards whose own text lifts the singleton limit,
// keyed by card.Key, with their printed cap.
var multiCopyAllowed = map[string]int{
	card.Key("Relentless Rats"):         unlimited,
	card.Key("Shadowborn Apostle"):      unlimited,
	card.Key("Persistent Petitioners"):  unlimited,
	card.Key("Rat Colony"):              unlimited,
	card.Key("Dragon's Approach"):       unlimited,
	card.Key("Slime Against Humanity"):  unlimited,
	card.Key("Hare Apparent"):           unlimited,
	card.Key("Templar Knight"):          unlimited,
	card.Key("Tempest Hawk"):            unlimited,
	card.Key("Cid, Timeless Artificer"): unlimited,
	card.Key("Seven Dwarves"):           7,
	card.Key("Nazgûl"):                  9,
}

func isBasicLand(rec *card.Record) bool {
	return rec != nil && rec.TypeLineContains("basic") && rec.TypeLineContains("land")
}

func checkSingleton(ctx context.Context, in Input) []Violation {
	var violations []Violation
	for _, name := range in.names() {
		count := in.Counts[name]
		if count <= 1 {
			continue
		}
		// A missing record is not exempt.
		rec := in.record(ctx, name)
		if rec == nil {
			violations = append(violations, singletonViolation(rec, name, count, 1))
			continue
		}
		if isBasicLand(rec) {
			continue
		}
		limit, allowed := multiCopyAllowed[rec.Key()]
		if !allowed {
			violations = append(violations, singletonViolation(rec, name, count, 1))
			continue
		}
		if limit != unlimited && count > limit {
			violations = append(violations, singletonViolation(rec, name, count, limit))
		}
	}
	return violations
}

func singletonViolation(rec *card.Record, name string, count, limit int) Violation {
	msg := fmt.Sprintf("%s: %d copies; only one is allowed", displayName(rec, name), count)
	if limit > 1 {
		msg = fmt.Sprintf("%s: %d copies; at most %d are allowed", displayName(rec, name), count, limit)
	}
	return Violation{
		Severity: SeverityError,
		Message:  msg,
		Cards:    []string{displayName(rec, name)},
	}
}

func checkCommander(ctx context.Context, in Input) []Violation {
	if in.Lookup == nil {
		return []Violation{{
			Severity: SeverityWarning,
			Message:  "Commander could not be verified: card catalog unavailable",
		}}
	}
	for _, name := range in.names() {
		rec := in.record(ctx, name)
		if rec != nil && in.Format.IsCommander(*rec) {
			return nil
		}
	}
	return []Violation{{
		Severity: SeverityError,
		Message:  fmt.Sprintf("No %s found to lead the deck", in.Format.CommanderKind),
	}}
}

func checkLegality(ctx context.Context, in Input) []Violation {
	if in.Lookup == nil {
		return []Violation{{
			Severity: SeverityWarning,
			Message:  "Format legality could not be verified: card catalog unavailable",
		}}
	}
	var violations []Violation
	for _, name := range in.names() {
		rec := in.record(ctx, name)
		if rec == nil {
			continue
		}
		if status, ok := rec.LegalityIn(in.Format.LegalityKey); ok && status == card.Banned {
			violations = append(violations, Violation{
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s is banned in %s", displayName(rec, name), in.Format.LegalityKey),
				Cards:    []string{displayName(rec, name)},
			})
		}
	}
	return violations
}
