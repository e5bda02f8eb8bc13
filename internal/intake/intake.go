// Package intake checks an application's uploads against the document
// checklist for its program. The check runs on filenames alone, before any
// rasterization or OCR spend.
package intake

import (
	"fmt"
	"strings"
)

// checklists maps each program to the document keywords its applications
// must include. A keyword matches when it appears anywhere in a filename,
// case-insensitively.
var checklists = map[string][]string{
	"Undergraduate": {"transcript", "recommendation", "statement"},
	"Graduate":      {"transcript", "recommendations", "statement", "resume"},
	"PhD":           {"transcript", "research_proposal", "recommendations", "cv"},
}

// programOrder keeps listings stable.
var programOrder = []string{"Undergraduate", "Graduate", "PhD"}

// Programs returns the known program names.
func Programs() []string {
	out := make([]string, len(programOrder))
	copy(out, programOrder)
	return out
}

// Required returns the document checklist for a program. The program name
// is matched case-insensitively.
func Required(program string) ([]string, error) {
	name, err := canonical(program)
	if err != nil {
		return nil, err
	}
	required := checklists[name]
	out := make([]string, len(required))
	copy(out, required)
	return out, nil
}

// Check reports whether the filenames cover the program's checklist and
// which checklist entries are uncovered, in checklist order.
func Check(program string, filenames []string) (bool, []string, error) {
	required, err := Required(program)
	if err != nil {
		return false, nil, err
	}

	lowered := make([]string, len(filenames))
	for i, f := range filenames {
		lowered[i] = strings.ToLower(f)
	}

	var missing []string
	for _, keyword := range required {
		found := false
		for _, f := range lowered {
			if strings.Contains(f, keyword) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, keyword)
		}
	}
	return len(missing) == 0, missing, nil
}

func canonical(program string) (string, error) {
	for _, name := range programOrder {
		if strings.EqualFold(name, program) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown program %q (known: %s)", program, strings.Join(programOrder, ", "))
}
