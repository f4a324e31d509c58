package sniffer

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/markdave123-py/doctor/internal/models"
)

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
}

func zipBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("hello"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	s := New()

	tests := []struct {
		name     string
		data     []byte
		declared string
		format   models.Format
	}{
		{"pdf magic", pdfBytes(), "whatever.xyz", models.FormatPDF},
		{"wordperfect magic", append([]byte{0xFF}, []byte("WPC0123456789")...), "file.bin", models.FormatWPD},
		{"html", []byte("<!DOCTYPE html><html><body>hi</body></html>"), "page", models.FormatHTML},
		{"plain text", []byte("just some plain words\nwith lines\n"), "notes", models.FormatTXT},
		{"png image", []byte("\x89PNG\r\n\x1a\n0000000000"), "scan", models.FormatImage},
		{"zip archive", zipBytes(t), "bundle.zip", models.FormatArchive},
		{"empty", nil, "empty.pdf", models.FormatUnknown},
	}

	for _, tt := range tests {
		det := s.Detect(tt.data, tt.declared)
		if det.Format != tt.format {
			t.Errorf("%s: Detect() = %q, want %q", tt.name, det.Format, tt.format)
		}
	}
}

func TestDetectIgnoresDeclaredName(t *testing.T) {
	s := New()
	data := pdfBytes()

	// Permuting the declared name must never change the verdict when the
	// content carries a signature.
	names := []string{"a.pdf", "a.docx", "a.mp3", "", "no-extension", "a.unknown"}
	for _, name := range names {
		det := s.Detect(data, name)
		if det.Format != models.FormatPDF {
			t.Errorf("declared name %q changed verdict to %q", name, det.Format)
		}
		if det.Confidence != "magic" {
			t.Errorf("declared name %q changed confidence to %q", name, det.Confidence)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	s := New()
	data := zipBytes(t)

	first := s.Detect(data, "x.zip")
	for i := 0; i < 10; i++ {
		if got := s.Detect(data, "x.zip"); got != first {
			t.Fatalf("detection not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestDetectExtensionHint(t *testing.T) {
	s := New()

	// Opaque bytes with no signature: the declared extension is used as a
	// hint, flagged accordingly.
	data := []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff, 0x00, 0x10}
	det := s.Detect(data, "letter.wpd")
	if det.Format != models.FormatWPD {
		t.Fatalf("Detect() = %q, want wpd via hint", det.Format)
	}
	if det.Confidence != "hint" {
		t.Fatalf("confidence = %q, want hint", det.Confidence)
	}

	// Legacy fix: .dot templates are treated as .doc.
	det = s.Detect(data, "template.dot")
	if det.Format != models.FormatDoc {
		t.Fatalf("Detect(.dot) = %q, want doc", det.Format)
	}
}

func TestDetectStripsTrailerJunk(t *testing.T) {
	s := New()

	// Some uploads arrive with a stray trailer fragment before the header.
	data := append([]byte("%%EOF\r"), pdfBytes()...)
	det := s.Detect(data, "junk.bin")
	if det.Format != models.FormatPDF {
		t.Fatalf("Detect() = %q, want pdf after junk strip", det.Format)
	}
}

func TestDetectUnknown(t *testing.T) {
	s := New()
	det := s.Detect([]byte{0x00, 0x01, 0x02, 0x03}, "")
	if det.Format != models.FormatUnknown {
		t.Fatalf("Detect() = %q, want unknown", det.Format)
	}
	if det.Confidence != "none" {
		t.Fatalf("confidence = %q, want none", det.Confidence)
	}
}
