package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/veridocproj/veridoc/internal/fields"
)

// LoadWorkbook reads student records from the first sheet of an XLSX file.
// The header row maps columns to fields; matching is case-insensitive and
// ignores spaces and punctuation, so "Date of Birth", "DOB" and
// "date_of_birth" all land on the same field. Unrecognized columns are
// ignored and rows with neither a name nor an identity number are skipped.
func LoadWorkbook(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s has no data rows", sheet)
	}

	cols := make(map[fields.Field]int)
	for i, h := range rows[0] {
		if field, ok := canonicalColumn(h); ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols[fields.FieldName]; !ok {
		return nil, fmt.Errorf("sheet %s has no name column", sheet)
	}

	var recs []Record
	for _, row := range rows[1:] {
		rec := Record{
			Name:           cell(row, cols, fields.FieldName),
			DOB:            cell(row, cols, fields.FieldDOB),
			PassingYear:    cell(row, cols, fields.FieldPassingYear),
			Board:          cell(row, cols, fields.FieldBoard),
			Gender:         cell(row, cols, fields.FieldGender),
			IdentityNumber: cell(row, cols, fields.FieldIdentityNumber),
		}
		if rec.Name == "" && rec.IdentityNumber == "" {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Import loads a workbook and inserts its records into the store. It
// returns the number of records imported.
func Import(ctx context.Context, store *Store, path string) (int, error) {
	recs, err := LoadWorkbook(path)
	if err != nil {
		return 0, err
	}
	if err := store.Insert(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

func cell(row []string, cols map[fields.Field]int, f fields.Field) string {
	i, ok := cols[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// canonicalColumn maps a header cell to a field.
func canonicalColumn(header string) (fields.Field, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-', '.', '/':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(header)))

	switch key {
	case "name", "studentname", "candidatename", "nameofcandidate", "fullname":
		return fields.FieldName, true
	case "dob", "dateofbirth", "birthdate":
		return fields.FieldDOB, true
	case "passingyear", "yearofpassing", "year":
		return fields.FieldPassingYear, true
	case "board", "boardname":
		return fields.FieldBoard, true
	case "gender", "sex":
		return fields.FieldGender, true
	case "identitynumber", "identityno", "aadhaar", "aadhaarno", "aadhaarnumber", "aadhar", "aadharno", "idnumber", "uid":
		return fields.FieldIdentityNumber, true
	}
	return "", false
}
