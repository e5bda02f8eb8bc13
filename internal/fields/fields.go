// Package fields defines the identity and academic fields the engine extracts
// from admission documents, and the cleaned field set built from them.
package fields

// Field identifies a single extractable document field.
type Field string

const (
	FieldName           Field = "name"
	FieldDOB            Field = "dob"
	FieldPassingYear    Field = "passing_year"
	FieldBoard          Field = "board"
	FieldGender         Field = "gender"
	FieldIdentityNumber Field = "identity_number"

	// FieldTotalMarks is extracted from marksheets as supporting evidence but
	// is never used for registry matching.
	FieldTotalMarks Field = "total_marks"
)

// Matchable returns the fields compared against registry records, in stable order.
func Matchable() []Field {
	return []Field{
		FieldName,
		FieldDOB,
		FieldPassingYear,
		FieldBoard,
		FieldGender,
		FieldIdentityNumber,
	}
}

// All returns every known field, in stable order.
func All() []Field {
	return append(Matchable(), FieldTotalMarks)
}

// Parse maps a field name string to a Field.
func Parse(s string) (Field, bool) {
	for _, f := range All() {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Observation is a single raw field value seen in one document.
type Observation struct {
	Field  Field  `json:"field"`
	Value  string `json:"value"`
	Source string `json:"source"` // originating document filename
}
