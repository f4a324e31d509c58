// Package sniffer performs content-based format detection. The declared
// filename is only a hint: detection inspects magic bytes first and falls
// back to the extension when no signature matches.
package sniffer

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/markdave123-py/doctor/internal/models"
)

// sniffLimit bounds how much of the payload is inspected.
const sniffLimit = 3072

// extensionFixes maps sniffed extensions to the ones downstream tooling
// expects. Carried over from years of court-filing uploads: .dot templates
// are really .doc, wsdl/xml payloads extract like html, and so on.
var extensionFixes = map[string]string{
	".htm":  ".html",
	".xml":  ".html",
	".wsdl": ".html",
	".ksh":  ".txt",
	".asf":  ".wma",
	".dot":  ".doc",
}

func init() {
	mimetype.SetLimit(sniffLimit)
}

type Sniffer struct{}

func New() *Sniffer {
	return &Sniffer{}
}

// Detect classifies a document from its bytes. It never fails: when nothing
// matches it returns FormatUnknown and callers decide the fallback. Same
// bytes always yield the same verdict regardless of declaredName.
func (s *Sniffer) Detect(data []byte, declaredName string) models.DetectedFormat {
	if len(data) == 0 {
		return models.DetectedFormat{Format: models.FormatUnknown, Confidence: "none"}
	}

	prefix := data
	if len(prefix) > sniffLimit {
		prefix = prefix[:sniffLimit]
	}

	// WordPerfect ships a private magic (0xFF "WPC") that general-purpose
	// sniffers miss.
	if len(prefix) >= 4 && prefix[0] == 0xFF && bytes.Equal(prefix[1:4], []byte("WPC")) {
		return models.DetectedFormat{
			Format:     models.FormatWPD,
			MimeType:   "application/vnd.wordperfect",
			Extension:  ".wpd",
			Confidence: "magic",
		}
	}

	mtype := mimetype.Detect(prefix)
	format := formatForMime(mtype)

	// Some scanned court PDFs arrive with a stray trailer fragment glued to
	// the front, which makes general sniffers call them text or nothing at
	// all. Look past the junk for the real header.
	if format != models.FormatPDF {
		if i := bytes.Index(prefix[:min(40, len(prefix))], []byte("%PDF-")); i > 0 {
			return models.DetectedFormat{
				Format:     models.FormatPDF,
				MimeType:   "application/pdf",
				Extension:  ".pdf",
				Confidence: "magic",
			}
		}
	}

	if format != models.FormatUnknown {
		return models.DetectedFormat{
			Format:     format,
			MimeType:   mtype.String(),
			Extension:  fixExtension(mtype.Extension()),
			Confidence: "magic",
		}
	}

	// Last resort: trust the declared name, flagged as a hint only.
	if ext := strings.ToLower(filepath.Ext(declaredName)); ext != "" {
		if f, ok := formatForExtension(fixExtension(ext)); ok {
			return models.DetectedFormat{
				Format:     f,
				MimeType:   mtype.String(),
				Extension:  fixExtension(ext),
				Confidence: "hint",
			}
		}
	}

	return models.DetectedFormat{
		Format:     models.FormatUnknown,
		MimeType:   mtype.String(),
		Extension:  mtype.Extension(),
		Confidence: "none",
	}
}

// MimeType returns just the sniffed MIME string for a payload.
func (s *Sniffer) MimeType(data []byte) string {
	if len(data) > sniffLimit {
		data = data[:sniffLimit]
	}
	return mimetype.Detect(data).String()
}

func fixExtension(ext string) string {
	if fixed, ok := extensionFixes[ext]; ok {
		return fixed
	}
	return ext
}

func formatForMime(mtype *mimetype.MIME) models.Format {
	mime := mtype.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	switch mime {
	case "application/pdf":
		return models.FormatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return models.FormatDocx
	case "application/msword", "application/x-ole-storage":
		return models.FormatDoc
	case "application/vnd.oasis.opendocument.text":
		return models.FormatODT
	case "application/vnd.wordperfect":
		return models.FormatWPD
	case "text/rtf", "application/rtf":
		return models.FormatRTF
	case "text/html", "text/xml", "application/xml":
		return models.FormatHTML
	}

	switch {
	case strings.HasPrefix(mime, "text/"):
		return models.FormatTXT
	case strings.HasPrefix(mime, "image/"):
		return models.FormatImage
	case strings.HasPrefix(mime, "audio/"), strings.HasPrefix(mime, "video/"):
		return models.FormatAudio
	}

	switch mime {
	case "application/zip", "application/gzip", "application/x-tar",
		"application/x-rar-compressed", "application/x-7z-compressed":
		return models.FormatArchive
	}

	return models.FormatUnknown
}

func formatForExtension(ext string) (models.Format, bool) {
	switch ext {
	case ".pdf":
		return models.FormatPDF, true
	case ".docx":
		return models.FormatDocx, true
	case ".doc":
		return models.FormatDoc, true
	case ".odt":
		return models.FormatODT, true
	case ".wpd":
		return models.FormatWPD, true
	case ".rtf":
		return models.FormatRTF, true
	case ".html":
		return models.FormatHTML, true
	case ".txt", ".text", ".md":
		return models.FormatTXT, true
	case ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".gif", ".bmp":
		return models.FormatImage, true
	case ".mp3", ".wav", ".wma", ".m4a", ".ogg":
		return models.FormatAudio, true
	case ".zip", ".tar", ".gz", ".tgz":
		return models.FormatArchive, true
	}
	return models.FormatUnknown, false
}
