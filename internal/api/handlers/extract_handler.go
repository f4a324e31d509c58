package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/markdave123-py/doctor/internal/core/extraction_engine"
	"github.com/markdave123-py/doctor/internal/models"
)

// ExtractHandler exposes the extraction pipeline over HTTP.
//
// Status contract (stable): complete and partial extractions answer 200 (the
// body's status field tells them apart), failed extractions answer 422,
// unsupported formats 415, oversized input 413, malformed requests 400.
type ExtractHandler struct {
	orchestrator  *extraction_engine.Orchestrator
	maxInputBytes int64
}

func NewExtractHandler(orchestrator *extraction_engine.Orchestrator, maxInputBytes int64) *ExtractHandler {
	return &ExtractHandler{orchestrator: orchestrator, maxInputBytes: maxInputBytes}
}

// ExtractText runs the full pipeline over an uploaded document.
func (h *ExtractHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	data, name, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	opts := models.ExtractOptions{
		OCR: strings.ToLower(formValue(r, "ocr")),
	}
	if opts.OCR == "" {
		opts.OCR = "auto"
	}
	if langs := formValue(r, "languages"); langs != "" {
		for _, l := range strings.Split(langs, ",") {
			if l = strings.TrimSpace(l); l != "" {
				opts.Languages = append(opts.Languages, l)
			}
		}
	}
	if mp := formValue(r, "max_pages"); mp != "" {
		n, err := strconv.Atoi(mp)
		if err != nil || n < 0 {
			http.Error(w, "max_pages must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.MaxPages = n
	}

	result, err := h.orchestrator.Extract(r.Context(), name, data, opts)
	switch {
	case errors.Is(err, models.ErrInputTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, models.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		log.Printf("ExtractHandler: %v", err)
		http.Error(w, "extraction failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if result.Status == models.StatusFailed {
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

// readUpload pulls the "file" part out of a multipart request, enforcing the
// input cap before anything downstream runs.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20)) // headroom for form framing

	file, header, err := r.FormFile("file")
	if err != nil {
		// A body past the reader cap surfaces here, not as a short read.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, models.ErrInputTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		http.Error(w, "invalid file", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return nil, "", false
	}
	if int64(len(data)) > maxBytes {
		http.Error(w, models.ErrInputTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return nil, "", false
	}
	return data, header.Filename, true
}

// formValue reads a parameter from the query string or form body, query
// winning, matching how callers have historically sent options.
func formValue(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return r.FormValue(key)
}
