package models

import (
	"errors"
	"time"
)

// Format identifies a detected document type. Produced once by the sniffer
// from content, never from the declared filename alone.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDocx    Format = "docx"
	FormatDoc     Format = "doc"
	FormatODT     Format = "odt"
	FormatWPD     Format = "wpd"
	FormatRTF     Format = "rtf"
	FormatHTML    Format = "html"
	FormatTXT     Format = "txt"
	FormatImage   Format = "image"
	FormatAudio   Format = "audio"
	FormatArchive Format = "archive"
	FormatUnknown Format = "unknown"
)

// DetectedFormat is the sniffer's verdict for one document.
//
// Format:     the closed enumeration above.
// MimeType:   the sniffed MIME type (content-based).
// Extension:  the trusted extension derived from content, with legacy fixups.
// Confidence: "magic" when matched on content signatures, "hint" when only the
// declared name matched, "none" for unknown.
type DetectedFormat struct {
	Format     Format `json:"format"`
	MimeType   string `json:"mime_type"`
	Extension  string `json:"extension"`
	Confidence string `json:"confidence"`
}

// StageKind tags how a stage executes: an external subprocess or an
// in-process converter. Both go through the tool runner so timeout, output
// caps and scratch handling stay uniform.
type StageKind string

const (
	StageExec    StageKind = "exec"    // external utility (pdftotext, antiword, ffmpeg, ...)
	StageBuiltin StageKind = "builtin" // in-process converter (docconv, OCR, unpack)
)

// Stage is one unit of work in a strategy chain.
//
// Name:        stable identifier used in the manifest (e.g. "pdf-native-text").
// Kind:        exec or builtin.
// Command:     argv template for exec stages; "{input}" and "{output}" are
//              substituted by the runner.
// Builtin:     key of the registered in-process converter for builtin stages.
// Seq:         document structural index used as the aggregation sort key.
// Independent: true when the stage may run in parallel with its siblings
//              (per-page OCR); false stages run in declared order.
// OnlyIfEmpty: precondition — run only when the preceding stages produced no
//              usable text (the OCR fallback condition).
// Timeout:     hard wall-clock budget; zero means the configured default.
type Stage struct {
	Name        string
	Kind        StageKind
	Command     []string
	Builtin     string
	Seq         int
	Independent bool
	OnlyIfEmpty bool
	Timeout     time.Duration
}

// StrategyChain is the ordered set of stages resolved for a detected format.
// Read-only after resolution.
type StrategyChain struct {
	Format Format
	Stages []Stage
}

// StageStatus classifies the outcome of a single stage execution.
type StageStatus string

const (
	StageSuccess         StageStatus = "success"
	StageEmpty           StageStatus = "empty"   // ran fine, zero usable text (e.g. blank page)
	StageFailure         StageStatus = "failure" // non-zero exit or unrecoverable error
	StageTimeout         StageStatus = "timeout"
	StageTruncated       StageStatus = "truncated" // output exceeded the cap, payload kept up to it
	StageSkipped         StageStatus = "skipped"   // precondition not met
	StageSkippedUpstream StageStatus = "skipped-upstream-failure"
)

// StageResult records one stage execution for the manifest. Diagnostic holds
// a redacted summary, never raw subprocess stderr.
type StageResult struct {
	Stage      string        `json:"stage"`
	Status     StageStatus   `json:"status"`
	Seq        int           `json:"seq"`
	Text       string        `json:"-"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Usable reports whether the stage produced text worth aggregating.
func (r StageResult) Usable() bool {
	return (r.Status == StageSuccess || r.Status == StageTruncated) && r.Text != ""
}

// DocStatus is the terminal status of one document extraction.
type DocStatus string

const (
	StatusComplete DocStatus = "complete"
	StatusPartial  DocStatus = "partial"
	StatusFailed   DocStatus = "failed"
)

// ExtractionResult is the single aggregate produced per document invocation.
// Immutable once returned.
type ExtractionResult struct {
	Status         DocStatus     `json:"status"`
	Content        string        `json:"content"`
	Format         Format        `json:"format"`
	MimeType       string        `json:"mime_type"`
	PageCount      int           `json:"page_count,omitempty"`
	ExtractedByOCR bool          `json:"extracted_by_ocr"`
	Manifest       []StageResult `json:"manifest"`
	Err            string        `json:"err,omitempty"`
}

// ExtractOptions are the recognized per-request processing knobs.
//
// OCR:       "auto" (fallback when native text is empty), "force", or "skip".
// Languages: OCR language hints (tesseract trained-data names, e.g. "eng").
// MaxPages:  cap on pages considered for OCR; zero means no cap.
type ExtractOptions struct {
	OCR       string
	Languages []string
	MaxPages  int
}

// Error taxonomy. Stage-level errors never escape the tool runner as raw
// errors; these sentinels classify pre-flight rejections and runner outcomes.
var (
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrInputTooLarge          = errors.New("input exceeds maximum size")
	ErrStageTimeout           = errors.New("stage timed out")
	ErrStageFailure           = errors.New("stage failed")
	ErrStageTruncated         = errors.New("stage output truncated")
	ErrRecursionLimitExceeded = errors.New("archive recursion limit exceeded")
)
