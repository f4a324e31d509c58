package extraction_engine

import (
	"strings"
	"unicode"
)

// needsOCR decides whether a PDF's native text layer is good enough to skip
// OCR. Scanned filings often carry a near-empty or garbage text layer
// (broken CMaps, private-use glyphs), so both volume and character sanity
// are checked.
func needsOCR(text string, pageCount int) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if pageCount > 0 {
		charsPerPage := float64(len([]rune(trimmed))) / float64(pageCount)
		if charsPerPage < 50 {
			return true
		}
	}
	return printableRatio(trimmed) < 0.85
}

// printableRatio returns the share of printable characters in text.
// Private Use Area runes, the replacement character, and control characters
// other than whitespace count as garbage.
func printableRatio(text string) float64 {
	if text == "" {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}
