// Package registry maps detected formats to ordered extraction strategy
// chains. The table is immutable process-wide state built once at startup.
package registry

import (
	"strings"

	"github.com/markdave123-py/doctor/internal/models"
)

// Stage name and builtin keys shared with the orchestrator and runner.
const (
	StagePDFNativeText  = "pdf-native-text"
	StagePDFOCR         = "pdf-ocr"
	StageDocAntiword    = "doc-antiword"
	StageDocxExtract    = "docx-extract"
	StageODTExtract     = "odt-extract"
	StageRTFExtract     = "rtf-extract"
	StageHTMLExtract    = "html-extract"
	StageTXTExtract     = "txt-extract"
	StageWPDText        = "wpd-text"
	StageImageOCR       = "image-ocr"
	StageArchiveUnpack  = "archive-unpack"
	StageAudioTranscode = "audio-transcode-wav"
	StageSpeechToText   = "speech-to-text"

	BuiltinDocconv = "docconv"
	BuiltinOCR     = "ocr"
	BuiltinUnpack  = "unpack"
)

// Options configure chain construction.
//
// SpeechToTextCmd: command template for the speech pipeline, with an {input}
// placeholder. When empty, audio resolves to an empty chain and surfaces as
// an unsupported format.
type Options struct {
	SpeechToTextCmd string
}

type Registry struct {
	chains map[models.Format][]models.Stage
}

// New builds the static strategy table.
func New(opts Options) *Registry {
	chains := map[models.Format][]models.Stage{
		models.FormatPDF: {
			{
				Name:    StagePDFNativeText,
				Kind:    models.StageExec,
				Command: []string{"pdftotext", "-layout", "-enc", "UTF-8", "{input}", "-"},
			},
			{
				// Expanded by the orchestrator into independent per-page
				// rasterize+recognize stages once the page count is known.
				Name:        StagePDFOCR,
				Kind:        models.StageBuiltin,
				Builtin:     BuiltinOCR,
				Seq:         1,
				OnlyIfEmpty: true,
			},
		},
		models.FormatDocx: {
			{Name: StageDocxExtract, Kind: models.StageBuiltin, Builtin: BuiltinDocconv},
		},
		models.FormatDoc: {
			{Name: StageDocAntiword, Kind: models.StageExec, Command: []string{"antiword", "{input}"}},
		},
		models.FormatODT: {
			{Name: StageODTExtract, Kind: models.StageBuiltin, Builtin: BuiltinDocconv},
		},
		models.FormatRTF: {
			{Name: StageRTFExtract, Kind: models.StageBuiltin, Builtin: BuiltinDocconv},
		},
		models.FormatHTML: {
			{Name: StageHTMLExtract, Kind: models.StageBuiltin, Builtin: BuiltinDocconv},
		},
		models.FormatTXT: {
			{Name: StageTXTExtract, Kind: models.StageBuiltin, Builtin: BuiltinDocconv},
		},
		models.FormatWPD: {
			{Name: StageWPDText, Kind: models.StageExec, Command: []string{"wpd2text", "{input}"}},
		},
		models.FormatImage: {
			{Name: StageImageOCR, Kind: models.StageBuiltin, Builtin: BuiltinOCR},
		},
		models.FormatArchive: {
			{Name: StageArchiveUnpack, Kind: models.StageBuiltin, Builtin: BuiltinUnpack},
		},
	}

	if cmd := strings.TrimSpace(opts.SpeechToTextCmd); cmd != "" {
		chains[models.FormatAudio] = []models.Stage{
			{
				Name:    StageAudioTranscode,
				Kind:    models.StageExec,
				Command: []string{"ffmpeg", "-y", "-i", "{input}", "-ar", "16000", "-ac", "1", "{output}"},
			},
			{
				Name:    StageSpeechToText,
				Kind:    models.StageExec,
				Command: strings.Fields(cmd),
				Seq:     1,
			},
		}
	}

	return &Registry{chains: chains}
}

// Resolve returns the strategy chain for a format. Unknown (or unconfigured)
// formats yield an empty chain, surfaced by the orchestrator as an
// unsupported-format outcome. The returned stages are copies; callers may
// not mutate registry state.
func (r *Registry) Resolve(format models.Format) models.StrategyChain {
	template := r.chains[format]
	stages := make([]models.Stage, len(template))
	copy(stages, template)
	return models.StrategyChain{Format: format, Stages: stages}
}

// Supported lists every format with a non-empty chain.
func (r *Registry) Supported() []models.Format {
	out := make([]models.Format, 0, len(r.chains))
	for f := range r.chains {
		out = append(out, f)
	}
	return out
}
