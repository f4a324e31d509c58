package extraction_engine

import (
	"sort"
	"strings"

	"github.com/markdave123-py/doctor/internal/models"
)

// aggregate merges stage results into the final ExtractionResult. Text
// segments are concatenated in document structural order — Seq is the sort
// key, never completion order, because independent OCR pages finish in
// whatever order the pool schedules them. No StageResult is ever dropped
// from the manifest, even when its payload is empty.
func aggregate(manifest []models.StageResult) *models.ExtractionResult {
	ordered := make([]models.StageResult, len(manifest))
	copy(ordered, manifest)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Seq < ordered[j].Seq
	})

	var segments []string
	usable := 0
	failures := 0
	truncated := 0
	byOCR := false

	for _, r := range ordered {
		switch r.Status {
		case models.StageFailure, models.StageTimeout:
			failures++
		case models.StageTruncated:
			truncated++
		}
		if r.Usable() {
			usable++
			segments = append(segments, r.Text)
			if strings.HasPrefix(r.Stage, "ocr-page-") || r.Stage == "image-ocr" {
				byOCR = true
			}
		}
	}

	status := models.StatusComplete
	switch {
	case failures > 0 && usable == 0:
		status = models.StatusFailed
	case failures > 0 || truncated > 0:
		status = models.StatusPartial
	}

	res := &models.ExtractionResult{
		Status:         status,
		Content:        strings.Join(segments, "\n\n"),
		ExtractedByOCR: byOCR,
		Manifest:       ordered,
	}
	if status == models.StatusFailed {
		res.Err = firstDiagnostic(ordered)
	}
	return res
}

func firstDiagnostic(manifest []models.StageResult) string {
	for _, r := range manifest {
		if r.Diagnostic != "" {
			return r.Diagnostic
		}
	}
	return "unable to extract document content"
}

// usableText reports whether any stage so far produced usable text. Drives
// the OnlyIfEmpty precondition for OCR fallback stages.
func usableText(manifest []models.StageResult) bool {
	for _, r := range manifest {
		if r.Usable() {
			return true
		}
	}
	return false
}

// hasFailure reports whether any stage so far failed or timed out.
func hasFailure(manifest []models.StageResult) bool {
	for _, r := range manifest {
		if r.Status == models.StageFailure || r.Status == models.StageTimeout {
			return true
		}
	}
	return false
}
