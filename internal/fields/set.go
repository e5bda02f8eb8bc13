package fields

import "strings"

// Set is the cleaned field set for one verification call: every distinct
// value observed per field, deduplicated under Normalize. Conflicting values
// are both retained; the set records what the documents said, not a guess at
// which document is right.
type Set map[Field][]string

// NewSet builds a Set from observations. Empty and whitespace-only values are
// dropped; duplicates (after normalization) keep the first raw spelling seen.
func NewSet(observations []Observation) Set {
	s := make(Set)
	for _, obs := range observations {
		s.Add(obs)
	}
	return s
}

// Add records one observation, deduplicating under normalization.
func (s Set) Add(obs Observation) {
	value := strings.TrimSpace(obs.Value)
	if value == "" {
		return
	}

	norm := Normalize(obs.Field, value)
	if norm == "" {
		return
	}
	for _, existing := range s[obs.Field] {
		if Normalize(obs.Field, existing) == norm {
			return
		}
	}
	s[obs.Field] = append(s[obs.Field], value)
}

// Has reports whether at least one value was observed for the field.
func (s Set) Has(f Field) bool {
	return len(s[f]) > 0
}

// Values returns the distinct raw values observed for the field.
func (s Set) Values(f Field) []string {
	return s[f]
}

// Normalized returns the normalized forms of the field's values.
func (s Set) Normalized(f Field) []string {
	values := s[f]
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Normalize(f, v)
	}
	return out
}

// Conflicting reports whether more than one distinct value was observed.
func (s Set) Conflicting(f Field) bool {
	return len(s[f]) > 1
}

// Missing returns the required fields absent from the set, in the order given.
func (s Set) Missing(required []Field) []Field {
	var missing []Field
	for _, f := range required {
		if !s.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Fields returns the populated fields in the stable All() order.
func (s Set) Fields() []Field {
	var out []Field
	for _, f := range All() {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
