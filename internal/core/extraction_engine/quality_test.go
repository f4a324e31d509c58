package extraction_engine

import (
	"strings"
	"testing"
)

func TestNeedsOCR(t *testing.T) {
	goodPage := strings.Repeat("This page holds a normal amount of readable text. ", 10)

	tests := []struct {
		name      string
		text      string
		pageCount int
		want      bool
	}{
		{"empty text", "", 1, true},
		{"whitespace only", "  \n\t ", 3, true},
		{"healthy text layer", goodPage, 1, false},
		{"thin layer on many pages", "a few words", 30, true},
		{"garbage glyphs", strings.Repeat("", 200), 1, true},
	}

	for _, tt := range tests {
		if got := needsOCR(tt.text, tt.pageCount); got != tt.want {
			t.Errorf("%s: needsOCR = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPrintableRatio(t *testing.T) {
	if r := printableRatio("plain readable sentence"); r < 0.95 {
		t.Errorf("ratio = %f, want near 1 for clean text", r)
	}
	garbage := "abc\x01\x02\x03"
	if r := printableRatio(garbage); r >= 0.85 {
		t.Errorf("ratio = %f, want < 0.85 for garbage", r)
	}
	if r := printableRatio(""); r != 1.0 {
		t.Errorf("ratio of empty = %f, want 1.0", r)
	}
}
