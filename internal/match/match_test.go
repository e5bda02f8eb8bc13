package match

import (
	"testing"
	"time"

	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/registry"
)

func setOf(obs ...fields.Observation) fields.Set {
	return fields.NewSet(obs)
}

func obs(f fields.Field, v string) fields.Observation {
	return fields.Observation{Field: f, Value: v, Source: "doc.pdf"}
}

var priya = registry.Record{
	ID:             1,
	Name:           "Priya Sharma",
	DOB:            "2004-06-15",
	PassingYear:    "2022",
	Board:          "CBSE",
	Gender:         "female",
	IdentityNumber: "123456789012",
}

func TestScore(t *testing.T) {
	t.Run("normalized equality across formats", func(t *testing.T) {
		set := setOf(
			obs(fields.FieldName, "PRIYA  SHARMA"),
			obs(fields.FieldDOB, "15/06/2004"),
			obs(fields.FieldPassingYear, "2022"),
			obs(fields.FieldBoard, "cbse"),
			obs(fields.FieldGender, "Female"),
			obs(fields.FieldIdentityNumber, "1234 5678 9012"),
		)

		score, matched := Score(set, priya)
		if score != 6 {
			t.Errorf("Score = %d, want 6, matched %v", score, matched)
		}
		for _, f := range fields.Matchable() {
			if !matched[f] {
				t.Errorf("field %s not matched", f)
			}
		}
	})

	t.Run("any observed value counts once", func(t *testing.T) {
		set := setOf(
			obs(fields.FieldName, "PRIA SHARMA"),
			obs(fields.FieldName, "Priya Sharma"),
		)

		score, matched := Score(set, priya)
		if score != 1 {
			t.Errorf("Score = %d, want 1 (one point per field)", score)
		}
		if !matched[fields.FieldName] {
			t.Error("name not matched despite one agreeing value")
		}
	})

	t.Run("empty record fields never score", func(t *testing.T) {
		rec := registry.Record{ID: 2, Name: "Priya Sharma"}
		set := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldBoard, "CBSE"),
		)

		score, matched := Score(set, rec)
		if score != 1 {
			t.Errorf("Score = %d, want 1", score)
		}
		if matched[fields.FieldBoard] {
			t.Error("board matched against an empty record value")
		}
	})

	t.Run("agreeing fields only ever add", func(t *testing.T) {
		base := setOf(obs(fields.FieldName, "Priya Sharma"))
		more := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldDOB, "15-06-2004"),
		)

		baseScore, _ := Score(base, priya)
		moreScore, _ := Score(more, priya)
		if moreScore <= baseScore {
			t.Errorf("score did not grow: %d then %d", baseScore, moreScore)
		}
	})

	t.Run("disagreeing values never subtract", func(t *testing.T) {
		agreeing := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldDOB, "15-06-2004"),
		)
		withConflict := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldName, "SOMEONE ELSE"),
			obs(fields.FieldDOB, "15-06-2004"),
			obs(fields.FieldDOB, "01-01-1999"),
		)

		a, _ := Score(agreeing, priya)
		b, _ := Score(withConflict, priya)
		if b != a {
			t.Errorf("conflicting values changed score: %d then %d", a, b)
		}
	})
}

func TestBest(t *testing.T) {
	t.Run("zero-overlap records are never candidates", func(t *testing.T) {
		set := setOf(obs(fields.FieldName, "UNKNOWN PERSON"))
		best, ambiguous := Best(set, []registry.Record{priya})
		if best != nil {
			t.Errorf("best = %+v, want nil", best)
		}
		if ambiguous {
			t.Error("ambiguous without candidates")
		}
	})

	t.Run("highest score wins", func(t *testing.T) {
		other := registry.Record{ID: 2, Name: "Priya Sharma", DOB: "1999-01-01"}
		set := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldDOB, "15-06-2004"),
		)

		best, ambiguous := Best(set, []registry.Record{other, priya})
		if best == nil || best.Record.ID != priya.ID {
			t.Fatalf("best = %+v, want record 1", best)
		}
		if best.Score != 2 {
			t.Errorf("Score = %d, want 2", best.Score)
		}
		if ambiguous {
			t.Error("unique winner flagged ambiguous")
		}
	})

	t.Run("tie breaks to most recently updated", func(t *testing.T) {
		older := registry.Record{ID: 1, Name: "Priya Sharma", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		newer := registry.Record{ID: 2, Name: "Priya Sharma", UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		set := setOf(obs(fields.FieldName, "Priya Sharma"))

		best, ambiguous := Best(set, []registry.Record{older, newer})
		if best == nil || best.Record.ID != 2 {
			t.Fatalf("best = %+v, want record 2", best)
		}
		if !ambiguous {
			t.Error("broken tie not flagged ambiguous")
		}
	})

	t.Run("equal timestamps break to lowest ID", func(t *testing.T) {
		when := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		a := registry.Record{ID: 7, Name: "Priya Sharma", UpdatedAt: when}
		b := registry.Record{ID: 3, Name: "Priya Sharma", UpdatedAt: when}
		set := setOf(obs(fields.FieldName, "Priya Sharma"))

		// Same winner whichever order the records arrive in.
		for _, recs := range [][]registry.Record{{a, b}, {b, a}} {
			best, ambiguous := Best(set, recs)
			if best == nil || best.Record.ID != 3 {
				t.Fatalf("best = %+v, want record 3", best)
			}
			if !ambiguous {
				t.Error("broken tie not flagged ambiguous")
			}
		}
	})

	t.Run("beaten tie is not ambiguous", func(t *testing.T) {
		weak1 := registry.Record{ID: 1, Name: "Priya Sharma"}
		weak2 := registry.Record{ID: 2, Name: "Priya Sharma"}
		strong := registry.Record{ID: 3, Name: "Priya Sharma", DOB: "2004-06-15"}
		set := setOf(
			obs(fields.FieldName, "Priya Sharma"),
			obs(fields.FieldDOB, "15-06-2004"),
		)

		best, ambiguous := Best(set, []registry.Record{weak1, weak2, strong})
		if best == nil || best.Record.ID != 3 {
			t.Fatalf("best = %+v, want record 3", best)
		}
		if ambiguous {
			t.Error("tie below the winning score flagged ambiguous")
		}
	})

	t.Run("empty registry", func(t *testing.T) {
		set := setOf(obs(fields.FieldName, "Priya Sharma"))
		best, ambiguous := Best(set, nil)
		if best != nil || ambiguous {
			t.Errorf("best = %+v ambiguous = %v", best, ambiguous)
		}
	})
}
