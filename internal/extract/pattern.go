package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/veridocproj/veridoc/internal/fields"
	"github.com/veridocproj/veridoc/internal/ocr"
)

// sentinelStop terminates a free-text capture before the next label bleeds
// into it. OCR output frequently runs labels together on one line.
const sentinelStop = `\s*(?:\n|roll\b|class\b|registration\b|reg\b|father\b|mother\b|total\b|marks\b|d\.?o\.?b\b|session\b|$)`

// dateValue accepts day-first and year-first forms with - or / separators.
// Values are captured verbatim; normalization happens at match time.
const dateValue = `\d{1,2}[-/]\d{1,2}[-/]\d{4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}`

type patternRule struct {
	field fields.Field
	re    *regexp.Regexp
}

// patternRules is tried in declared order; the first rule that matches a
// field wins for that field and later rules for it are skipped. Within a
// field, labeled forms come first and label-free fallbacks last.
var patternRules = []patternRule{
	// Candidate name. A bare "Name" label is accepted because on real
	// marksheets the candidate line precedes the parent lines, and leftmost
	// match picks the first occurrence.
	{fields.FieldName, regexp.MustCompile(`(?i)(?:name of (?:the )?(?:candidate|student)|(?:candidate|student)'?s? name|name)\s*[:\-]?\s*([a-z][a-z .']*?)` + sentinelStop)},

	// Date of birth, label before or after the value.
	{fields.FieldDOB, regexp.MustCompile(`(?i)(?:date of birth|d\.?o\.?b\.?|born(?: on)?)\s*[:\-]?\s*(` + dateValue + `)`)},
	{fields.FieldDOB, regexp.MustCompile(`(?i)(` + dateValue + `)\s*[(\s]*(?:date of birth|d\.?o\.?b)`)},

	// Passing year: labeled either side of the value, then any bare year
	// inside the plausible window. The guards around the bare form keep it
	// from firing on the year component of a full date.
	{fields.FieldPassingYear, regexp.MustCompile(`(?i)(?:year of passing|passing year|passed in(?: the year)?|examination year|year)\s*[:\-]?\s*((?:19|20)\d{2})\b`)},
	{fields.FieldPassingYear, regexp.MustCompile(`(?i)((?:19|20)\d{2})\s*[(\s]*(?:year of passing|passing year)`)},
	{fields.FieldPassingYear, regexp.MustCompile(`(?:^|[^0-9/-])(19[5-9][0-9]|20[0-2][0-9]|203[0-5])(?:[^0-9/-]|$)`)},

	// Board: explicit label needs a separator so "Board of Secondary
	// Education" inside a board name does not self-capture; known boards
	// are recognized label-free.
	{fields.FieldBoard, regexp.MustCompile(`(?i)\bboard\s*[:\-]\s*([a-z][a-z .&()']*?)` + sentinelStop)},
	{fields.FieldBoard, regexp.MustCompile(`(?i)\b(central board of secondary education|council for the indian school certificate examinations?)\b`)},
	{fields.FieldBoard, regexp.MustCompile(`(?i)\b(c\.?b\.?s\.?e|i\.?c\.?s\.?e|cisce|nios)\b`)},
	{fields.FieldBoard, regexp.MustCompile(`(?i)\b((?:[a-z]+ )?state board)\b`)},

	// Gender: labeled, then bare vocabulary.
	{fields.FieldGender, regexp.MustCompile(`(?i)\b(?:gender|sex)\s*[:\-]?\s*(male|female|transgender|other|[mf]\b)`)},
	{fields.FieldGender, regexp.MustCompile(`(?i)\b(male|female|transgender)\b`)},

	// Identity number: labeled, or a bare 12-digit run with optional 4-4-4
	// grouping. The word boundaries reject longer digit runs.
	{fields.FieldIdentityNumber, regexp.MustCompile(`(?i)(?:aadhaar|aadhar|uid|identity)\s*(?:no\.?|number|#)?\s*[:\-]?\s*((?:\d[ -]?){11}\d)\b`)},
	{fields.FieldIdentityNumber, regexp.MustCompile(`\b(\d{4}[ -]?\d{4}[ -]?\d{4})\b`)},

	{fields.FieldTotalMarks, regexp.MustCompile(`(?i)(?:total marks(?: obtained)?|marks obtained|total|aggregate)\s*[:\-]?\s*(\d{2,4})\b`)},
}

// PatternStrategy extracts fields with a fixed regex table. It is
// deterministic and needs no network.
type PatternStrategy struct {
	logger *slog.Logger
}

// NewPatternStrategy creates a pattern-table strategy.
func NewPatternStrategy(logger *slog.Logger) *PatternStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternStrategy{logger: logger}
}

// Name returns the strategy identifier.
func (s *PatternStrategy) Name() string {
	return PatternStrategyName
}

// ExtractFields runs the rule table over the document text. Identical text
// always yields identical observations.
func (s *PatternStrategy) ExtractFields(ctx context.Context, text *ocr.Text) ([]fields.Observation, error) {
	if text == nil || strings.TrimSpace(text.Text) == "" {
		return nil, nil
	}

	seen := make(map[fields.Field]bool)
	var obs []fields.Observation
	for _, rule := range patternRules {
		if seen[rule.field] {
			continue
		}
		m := rule.re.FindStringSubmatch(text.Text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			continue
		}
		seen[rule.field] = true
		obs = append(obs, fields.Observation{
			Field:  rule.field,
			Value:  value,
			Source: text.Filename,
		})
	}

	s.logger.Debug("pattern extraction complete",
		"document", text.Filename,
		"observations", len(obs))
	return obs, nil
}

// Verify interface
var _ Strategy = (*PatternStrategy)(nil)
