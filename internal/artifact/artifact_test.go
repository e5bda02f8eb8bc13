package artifact

import "testing"

func TestDetectKind(t *testing.T) {
	tests := []struct {
		filename string
		want     Kind
	}{
		{"transcript.pdf", KindPDF},
		{"Transcript.PDF", KindPDF},
		{"marksheet.png", KindImage},
		{"marksheet.jpg", KindImage},
		{"marksheet.JPEG", KindImage},
		{"scan.tif", KindImage},
		{"scan.tiff", KindImage},
		{"scan.bmp", KindImage},
		{"notes.txt", KindUnknown},
		{"archive.zip", KindUnknown},
		{"noextension", KindUnknown},
		{"", KindUnknown},
		{"dir/nested/statement.pdf", KindPDF},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectKind(tt.filename); got != tt.want {
				t.Errorf("DetectKind(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	data := []byte("%PDF-1.4")
	doc := New("degree.pdf", data)

	if doc.Filename != "degree.pdf" {
		t.Errorf("unexpected filename: %s", doc.Filename)
	}
	if doc.Kind != KindPDF {
		t.Errorf("expected pdf kind, got %s", doc.Kind)
	}
	if string(doc.Data) != "%PDF-1.4" {
		t.Error("data not preserved")
	}
}
