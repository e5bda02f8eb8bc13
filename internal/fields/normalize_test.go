package fields

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Priya Sharma", "priya sharma"},
		{"collapses internal whitespace", "Priya   \t Sharma", "priya sharma"},
		{"trims", "  priya sharma  ", "priya sharma"},
		{"newlines collapse", "priya\nsharma", "priya sharma"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"day first dashes", "12-05-2004", "20040512"},
		{"day first slashes", "12/05/2004", "20040512"},
		{"year first dashes", "2004-05-12", "20040512"},
		{"year first slashes", "2004/05/12", "20040512"},
		{"single digit day and month", "5-6-2004", "20040605"},
		{"surrounding whitespace", " 12-05-2004 ", "20040512"},
		{"invalid month falls back to digits", "12-13-2004", "12132004"},
		{"garbage falls back to digits", "born 2004", "2004"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDate(tt.input); got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_PerField(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		input string
		want  string
	}{
		{"identity strips spaces", FieldIdentityNumber, "1234 5678 9012", "123456789012"},
		{"identity strips hyphens", FieldIdentityNumber, "1234-5678-9012", "123456789012"},
		{"passing year digits", FieldPassingYear, "2022 ", "2022"},
		{"total marks digits", FieldTotalMarks, "452/500", "452500"},
		{"dob equivalence day-first", FieldDOB, "12-05-2004", "20040512"},
		{"dob equivalence year-first", FieldDOB, "2004-05-12", "20040512"},
		{"board text", FieldBoard, "  CBSE ", "cbse"},
		{"gender text", FieldGender, "Female", "female"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.field, tt.input); got != tt.want {
				t.Errorf("Normalize(%s, %q) = %q, want %q", tt.field, tt.input, got, tt.want)
			}
		})
	}
}

// Two spellings of the same date and the same identity number must land on a
// single normalized form, since matching depends on that equivalence.
func TestNormalize_Equivalence(t *testing.T) {
	if Normalize(FieldDOB, "12-05-2004") != Normalize(FieldDOB, "2004-05-12") {
		t.Error("date forms should normalize equal")
	}
	if Normalize(FieldIdentityNumber, "1234 5678 9012") != Normalize(FieldIdentityNumber, "123456789012") {
		t.Error("identity forms should normalize equal")
	}
	if Normalize(FieldName, "PRIYA  SHARMA") != Normalize(FieldName, "priya sharma") {
		t.Error("name forms should normalize equal")
	}
}
