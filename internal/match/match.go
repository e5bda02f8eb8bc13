// Package match scores a cleaned field set against the student registry
// and selects the best candidate record.
package match

import (
	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/registry"
)

// Candidate is one registry record with its match evidence.
type Candidate struct {
	Record  registry.Record       `json:"record"`
	Score   int                   `json:"score"`
	Matched map[fields.Field]bool `json:"matched"`
}

// Score counts the matchable fields on which the set agrees with the
// record. A field earns at most one point: it counts when ANY of its
// observed values normalizes equal to the record's value, so a conflicting
// second observation can never subtract evidence.
func Score(set fields.Set, rec registry.Record) (int, map[fields.Field]bool) {
	matched := make(map[fields.Field]bool)
	score := 0
	for _, f := range fields.Matchable() {
		recNorm := fields.Normalize(f, rec.Field(f))
		if recNorm == "" {
			continue
		}
		for _, obsNorm := range set.Normalized(f) {
			if obsNorm != "" && obsNorm == recNorm {
				matched[f] = true
				score++
				break
			}
		}
	}
	return score, matched
}

// Best returns the highest-scoring candidate, or nil when no record shares
// a single field with the set. Ties go to the most recently updated record,
// then the lowest ID; a tie at the winning score is reported as ambiguous
// rather than silently resolved.
func Best(set fields.Set, recs []registry.Record) (best *Candidate, ambiguous bool) {
	for i := range recs {
		score, matched := Score(set, recs[i])
		if score == 0 {
			continue
		}
		cand := &Candidate{Record: recs[i], Score: score, Matched: matched}

		switch {
		case best == nil || cand.Score > best.Score:
			best = cand
			ambiguous = false
		case cand.Score == best.Score:
			ambiguous = true
			if cand.Record.UpdatedAt.After(best.Record.UpdatedAt) ||
				(cand.Record.UpdatedAt.Equal(best.Record.UpdatedAt) && cand.Record.ID < best.Record.ID) {
				best = cand
			}
		}
	}
	return best, ambiguous
}
