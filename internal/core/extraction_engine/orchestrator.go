// Package extraction_engine drives the end-to-end pipeline for one document:
// sniff, resolve the strategy chain, execute stages through the tool runner,
// and aggregate stage results into a single ExtractionResult.
package extraction_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/doctor/internal/core/ocr"
	"github.com/markdave123-py/doctor/internal/core/registry"
	"github.com/markdave123-py/doctor/internal/core/sniffer"
	"github.com/markdave123-py/doctor/internal/core/toolrunner"
	"github.com/markdave123-py/doctor/internal/models"
)

// Config tunes one orchestrator instance.
//
// MaxInputBytes:   documents larger than this are rejected before any stage
//                  runs (fail closed).
// MaxArchiveDepth: ceiling for recursive archive unpacking.
// OCRFanout:       upper bound on concurrently prepared OCR pages; actual
//                  recognition is additionally serialized by the shared pool.
// OCRLanguages:    default language hints when a request supplies none.
type Config struct {
	MaxInputBytes   int64
	MaxArchiveDepth int
	OCRFanout       int
	OCRLanguages    []string
}

// Orchestrator owns no state across invocations: each Extract call walks
// Received → Sniffed → ChainResolved → Executing → Aggregating → Done and
// emits exactly one ExtractionResult.
type Orchestrator struct {
	cfg      Config
	sniffer  *sniffer.Sniffer
	registry *registry.Registry
	runner   *toolrunner.Runner
	pool     *ocr.Pool
	scratch  *toolrunner.Scratch
}

func NewOrchestrator(cfg Config, sn *sniffer.Sniffer, reg *registry.Registry, run *toolrunner.Runner, pool *ocr.Pool, scratch *toolrunner.Scratch) *Orchestrator {
	if cfg.OCRFanout < 1 {
		cfg.OCRFanout = 1
	}
	return &Orchestrator{cfg: cfg, sniffer: sn, registry: reg, runner: run, pool: pool, scratch: scratch}
}

// Extract runs the whole pipeline for one document. The returned error is
// non-nil only for pre-flight rejections (ErrInputTooLarge,
// ErrUnsupportedFormat) detected before any subprocess spawns; every other
// outcome, including internal faults, is expressed through the result's
// status and manifest.
func (o *Orchestrator) Extract(ctx context.Context, name string, data []byte, opts models.ExtractOptions) (result *models.ExtractionResult, err error) {
	defer func() {
		// One document's fault must never crash the process.
		if r := recover(); r != nil {
			log.Printf("Orchestrator: panic extracting %q: %v", name, r)
			result = &models.ExtractionResult{
				Status: models.StatusFailed,
				Err:    "internal error during extraction",
			}
			err = nil
		}
	}()

	if int64(len(data)) > o.cfg.MaxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", models.ErrInputTooLarge, len(data), o.cfg.MaxInputBytes)
	}

	det := o.sniffer.Detect(data, name)
	chain := o.registry.Resolve(det.Format)
	if len(chain.Stages) == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", models.ErrUnsupportedFormat, det.Format, det.MimeType)
	}

	res := o.runChain(ctx, det, chain, data, opts, 0)
	res.Format = det.Format
	res.MimeType = det.MimeType
	return res, nil
}

// runChain executes one resolved chain against one payload. depth tracks
// archive recursion.
func (o *Orchestrator) runChain(ctx context.Context, det models.DetectedFormat, chain models.StrategyChain, data []byte, opts models.ExtractOptions, depth int) *models.ExtractionResult {
	scratchDir, release, err := o.scratch.Acquire()
	if err != nil {
		return &models.ExtractionResult{Status: models.StatusFailed, Err: "could not allocate scratch space"}
	}
	defer release()

	inputPath := filepath.Join(scratchDir, "input"+det.Extension)
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return &models.ExtractionResult{Status: models.StatusFailed, Err: "could not stage input"}
	}

	pageCount := 0
	if det.Format == models.FormatPDF {
		if n, err := pdfPageCount(inputPath); err == nil {
			pageCount = n
		} else {
			log.Printf("Orchestrator: page count failed for %s: %v", det.Format, err)
		}
	}

	var manifest []models.StageResult
	for _, stage := range chain.Stages {
		switch {
		case stage.OnlyIfEmpty && opts.OCR == "skip":
			manifest = append(manifest, skipped(stage, "ocr disabled by request"))

		case stage.OnlyIfEmpty && opts.OCR != "force" && !o.fallbackWanted(manifest, pageCount):
			manifest = append(manifest, skipped(stage, "native text present"))

		case !stage.OnlyIfEmpty && !stage.Independent && hasFailure(manifest):
			manifest = append(manifest, models.StageResult{
				Stage:  stage.Name,
				Status: models.StageSkippedUpstream,
				Seq:    stage.Seq,
			})

		case opts.OCR == "force" && stage.Name == registry.StagePDFNativeText:
			manifest = append(manifest, skipped(stage, "ocr forced by request"))

		case stage.Builtin == registry.BuiltinOCR && det.Format == models.FormatPDF:
			manifest = demoteNativeText(manifest)
			manifest = append(manifest, o.runPageOCR(ctx, stage, inputPath, scratchDir, pageCount, opts)...)

		case stage.Builtin == registry.BuiltinOCR:
			manifest = append(manifest, o.runImageOCR(ctx, stage, inputPath, opts))

		case stage.Builtin == registry.BuiltinUnpack:
			manifest = append(manifest, o.runUnpack(ctx, stage, data, opts, depth)...)

		case stage.Name == registry.StageAudioTranscode:
			outPath := filepath.Join(scratchDir, "transcoded.wav")
			manifest = append(manifest, o.runner.RunToFile(ctx, stage, inputPath, outPath, scratchDir))
			// Later stages consume the transcoded file.
			inputPath = outPath

		default:
			manifest = append(manifest, o.runner.Run(ctx, stage, inputPath, scratchDir))
		}
	}

	res := aggregate(manifest)
	res.PageCount = pageCount
	return res
}

// fallbackWanted decides whether the OCR fallback precondition holds: no
// usable native text, or a native text layer too thin or garbled to trust.
func (o *Orchestrator) fallbackWanted(manifest []models.StageResult, pageCount int) bool {
	if !usableText(manifest) {
		return true
	}
	for _, r := range manifest {
		if r.Stage == registry.StagePDFNativeText && r.Usable() {
			return needsOCR(r.Text, pageCount)
		}
	}
	return false
}

// demoteNativeText clears a native text layer that was judged unusable so
// the OCR output does not get duplicated alongside garbage.
func demoteNativeText(manifest []models.StageResult) []models.StageResult {
	for i, r := range manifest {
		if r.Stage == registry.StagePDFNativeText && r.Usable() {
			manifest[i].Status = models.StageEmpty
			manifest[i].Text = ""
			manifest[i].Diagnostic = "native text layer unusable, deferring to ocr"
		}
	}
	return manifest
}

// runPageOCR fans out rasterize+recognize work across a document's pages.
// Pages are independent: each failure or timeout is confined to its page,
// and results are tagged with the page index so aggregation order never
// depends on completion order.
func (o *Orchestrator) runPageOCR(ctx context.Context, template models.Stage, inputPath, scratchDir string, pageCount int, opts models.ExtractOptions) []models.StageResult {
	if pageCount < 1 {
		pageCount = 1
	}
	if opts.MaxPages > 0 && pageCount > opts.MaxPages {
		pageCount = opts.MaxPages
	}
	langs := opts.Languages
	if len(langs) == 0 {
		langs = o.cfg.OCRLanguages
	}

	results := make([]models.StageResult, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.OCRFanout)

	for p := 1; p <= pageCount; p++ {
		page := p
		g.Go(func() error {
			results[page-1] = o.ocrOnePage(gctx, template, inputPath, scratchDir, page, langs)
			// Page faults stay page-local; never cancel siblings.
			return nil
		})
	}
	g.Wait()
	return results
}

func (o *Orchestrator) ocrOnePage(ctx context.Context, template models.Stage, inputPath, scratchDir string, page int, langs []string) models.StageResult {
	name := fmt.Sprintf("ocr-page-%d", page)
	prefix := filepath.Join(scratchDir, fmt.Sprintf("page-%04d", page))

	raster := models.Stage{
		Name: name,
		Kind: models.StageExec,
		Command: []string{
			"pdftoppm", "-gray", "-r", "300",
			"-f", fmt.Sprint(page), "-l", fmt.Sprint(page),
			"-singlefile", "-png", "{input}", prefix,
		},
		Seq:     page,
		Timeout: template.Timeout,
	}
	rres := o.runner.RunToFile(ctx, raster, inputPath, prefix+".png", scratchDir)
	if rres.Status != models.StageSuccess {
		rres.Seq = page
		return rres
	}

	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return models.StageResult{Stage: name, Status: models.StageFailure, Seq: page, Diagnostic: "rasterized page unreadable"}
	}

	text, err := o.pool.Recognize(ctx, img, langs)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.StageResult{Stage: name, Status: models.StageTimeout, Seq: page, Diagnostic: "page ocr timed out"}
	case err != nil:
		return models.StageResult{Stage: name, Status: models.StageFailure, Seq: page, Diagnostic: "page ocr failed"}
	case strings.TrimSpace(text) == "":
		// Blank pages are a valid outcome, not a failure.
		return models.StageResult{Stage: name, Status: models.StageEmpty, Seq: page}
	default:
		return models.StageResult{Stage: name, Status: models.StageSuccess, Seq: page, Text: text}
	}
}

// runImageOCR recognizes a directly submitted image through the shared pool.
func (o *Orchestrator) runImageOCR(ctx context.Context, stage models.Stage, inputPath string, opts models.ExtractOptions) models.StageResult {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = o.cfg.OCRLanguages
	}

	img, err := os.ReadFile(inputPath)
	if err != nil {
		return models.StageResult{Stage: stage.Name, Status: models.StageFailure, Seq: stage.Seq, Diagnostic: "input unreadable"}
	}

	text, err := o.pool.Recognize(ctx, img, langs)
	switch {
	case err != nil:
		return models.StageResult{Stage: stage.Name, Status: models.StageFailure, Seq: stage.Seq, Diagnostic: "ocr failed"}
	case strings.TrimSpace(text) == "":
		return models.StageResult{Stage: stage.Name, Status: models.StageEmpty, Seq: stage.Seq}
	default:
		return models.StageResult{Stage: stage.Name, Status: models.StageSuccess, Seq: stage.Seq, Text: text}
	}
}

// runUnpack expands an archive into one StageResult per member, re-sniffing
// each member and running it through its own chain. Depth is ceilinged to
// keep zip bombs and self-referential archives from amplifying.
func (o *Orchestrator) runUnpack(ctx context.Context, stage models.Stage, data []byte, opts models.ExtractOptions, depth int) []models.StageResult {
	if depth >= o.cfg.MaxArchiveDepth {
		return []models.StageResult{{
			Stage:      stage.Name,
			Status:     models.StageFailure,
			Seq:        stage.Seq,
			Diagnostic: models.ErrRecursionLimitExceeded.Error(),
		}}
	}

	members, err := listArchiveMembers(data)
	if err != nil {
		return []models.StageResult{{
			Stage:      stage.Name,
			Status:     models.StageFailure,
			Seq:        stage.Seq,
			Diagnostic: "archive unreadable",
		}}
	}
	if len(members) == 0 {
		return []models.StageResult{{Stage: stage.Name, Status: models.StageEmpty, Seq: stage.Seq}}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	var results []models.StageResult
	for i, m := range members {
		name := fmt.Sprintf("member:%s", m.name)
		if int64(len(m.data)) > o.cfg.MaxInputBytes {
			results = append(results, models.StageResult{
				Stage: name, Status: models.StageFailure, Seq: i,
				Diagnostic: "member exceeds maximum input size",
			})
			continue
		}

		det := o.sniffer.Detect(m.data, m.name)
		chain := o.registry.Resolve(det.Format)
		if len(chain.Stages) == 0 {
			results = append(results, models.StageResult{
				Stage: name, Status: models.StageFailure, Seq: i,
				Diagnostic: fmt.Sprintf("unsupported member format: %s", det.Format),
			})
			continue
		}

		sub := o.runChain(ctx, det, chain, m.data, opts, depth+1)
		results = append(results, models.StageResult{
			Stage:      name,
			Status:     memberStatus(sub),
			Seq:        i,
			Text:       sub.Content,
			Diagnostic: sub.Err,
		})
	}
	return results
}

func memberStatus(res *models.ExtractionResult) models.StageStatus {
	switch res.Status {
	case models.StatusFailed:
		return models.StageFailure
	default:
		if strings.TrimSpace(res.Content) == "" {
			return models.StageEmpty
		}
		return models.StageSuccess
	}
}

func skipped(stage models.Stage, why string) models.StageResult {
	return models.StageResult{
		Stage:      stage.Name,
		Status:     models.StageSkipped,
		Seq:        stage.Seq,
		Diagnostic: why,
	}
}
