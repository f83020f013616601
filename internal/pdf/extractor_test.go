package pdfutil

import "testing"

func TestExtractTextRejectsGarbage(t *testing.T) {
	for _, input := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.4\n%%EOF")} {
		text, err := ExtractText(input, 3)
		if err == nil {
			t.Fatalf("expected error for %q", input)
		}
		if text != "" {
			t.Fatalf("expected no text on failure, got %q", text)
		}
	}
}

func TestExtractorSatisfiesPageLimitedInterface(t *testing.T) {
	var e interface {
		Extract([]byte, int) (string, error)
	} = Extractor{}
	if _, err := e.Extract([]byte("plain text"), 3); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}
