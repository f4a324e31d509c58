package extraction_engine

import (
	"context"
	"fmt"
	"os"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/doctor/internal/core/registry"
	"github.com/markdave123-py/doctor/internal/core/toolrunner"
	"github.com/markdave123-py/doctor/internal/models"
)

// stageMimes maps docconv-backed stage names to the MIME type docconv
// dispatches on.
var stageMimes = map[string]string{
	registry.StageDocxExtract: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	registry.StageODTExtract:  "application/vnd.oasis.opendocument.text",
	registry.StageRTFExtract:  "application/rtf",
	registry.StageHTMLExtract: "text/html",
	registry.StageTXTExtract:  "text/plain",
}

// RegisterBuiltins wires the in-process converters into the runner. Called
// once at startup.
func RegisterBuiltins(r *toolrunner.Runner) {
	r.RegisterBuiltin(registry.BuiltinDocconv, docconvExtract)
}

// docconvExtract extracts structured-document text in process via docconv.
func docconvExtract(ctx context.Context, stage models.Stage, inputPath, scratchDir string) (string, error) {
	mime, ok := stageMimes[stage.Name]
	if !ok {
		return "", fmt.Errorf("no mime mapping for stage %q", stage.Name)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, mime, false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Body, nil
}
