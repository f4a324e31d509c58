package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/markdave123-py/doctor/internal/core/sniffer"
	"github.com/markdave123-py/doctor/internal/services"
)

// UtilsHandler serves the small sniffing and introspection endpoints used by
// callers that want a verdict without running the whole pipeline.
type UtilsHandler struct {
	sniffer       *sniffer.Sniffer
	convert       *services.ConvertService
	maxInputBytes int64
}

func NewUtilsHandler(sn *sniffer.Sniffer, convert *services.ConvertService, maxInputBytes int64) *UtilsHandler {
	return &UtilsHandler{sniffer: sn, convert: convert, maxInputBytes: maxInputBytes}
}

// MimeType sniffs the MIME type of an uploaded document from its bytes.
func (h *UtilsHandler) MimeType(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"mimetype": h.sniffer.MimeType(data)})
}

// Extension returns a trusted extension for an upload, content first and
// declared name only as a hint.
func (h *UtilsHandler) Extension(w http.ResponseWriter, r *http.Request) {
	data, name, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	det := h.sniffer.Detect(data, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(det.Extension))
}

// AudioDuration reports the duration of an uploaded audio file in seconds.
func (h *UtilsHandler) AudioDuration(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	secs, err := h.convert.AudioDuration(r.Context(), data)
	if err != nil {
		http.Error(w, "could not probe duration", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(strconv.FormatFloat(secs, 'f', -1, 64)))
}

// PageCount reports the page count of an uploaded PDF.
func (h *UtilsHandler) PageCount(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	n, err := h.convert.PDFPageCount(r.Context(), data)
	if err != nil {
		http.Error(w, "could not count pages", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"pg_count": n})
}
