package fields

import (
	"strings"
	"time"
	"unicode"
)

// Normalize returns the comparison form of a raw value for the given field.
// The same routine backs set deduplication and registry matching, so two
// values are "the same" everywhere or nowhere.
func Normalize(f Field, value string) string {
	switch f {
	case FieldIdentityNumber, FieldPassingYear, FieldTotalMarks:
		return digitsOnly(value)
	case FieldDOB:
		return NormalizeDate(value)
	default:
		return NormalizeText(value)
	}
}

// NormalizeText lower-cases, trims, and collapses whitespace runs.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDate canonicalizes a date string to YYYYMMDD. Accepted input
// layouts: DD-MM-YYYY, DD/MM/YYYY, YYYY-MM-DD, YYYY/MM/DD. Values that do
// not parse as a calendar date fall back to their digits, which keeps the
// comparison deterministic for malformed input.
func NormalizeDate(s string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	parts := strings.Split(cleaned, "-")
	if len(parts) != 3 {
		return digitsOnly(s)
	}

	var year, month, day string
	if len(parts[0]) == 4 {
		year, month, day = parts[0], parts[1], parts[2]
	} else {
		day, month, year = parts[0], parts[1], parts[2]
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}

	candidate := year + month + day
	if _, err := time.Parse("20060102", candidate); err != nil {
		return digitsOnly(s)
	}
	return candidate
}
