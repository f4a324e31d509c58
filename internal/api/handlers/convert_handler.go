package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/markdave123-py/doctor/internal/services"
)

// ConvertHandler serves the conversion endpoints: PDF thumbnails and audio
// transcoding.
type ConvertHandler struct {
	convert       *services.ConvertService
	maxInputBytes int64
}

func NewConvertHandler(convert *services.ConvertService, maxInputBytes int64) *ConvertHandler {
	return &ConvertHandler{convert: convert, maxInputBytes: maxInputBytes}
}

// Thumbnail renders the first page of an uploaded PDF as a PNG.
func (h *ConvertHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	maxDimension := 0
	if v := formValue(r, "max_dimension"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "max_dimension must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxDimension = n
	}

	png, err := h.convert.PDFThumbnail(r.Context(), data, maxDimension)
	if err != nil {
		http.Error(w, "thumbnail generation failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// ImageToPDF converts an uploaded image into a PDF document.
func (h *ConvertHandler) ImageToPDF(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	pdf, err := h.convert.ImageToPDF(r.Context(), data)
	if err != nil {
		http.Error(w, "image conversion failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(pdf)
}

// ImagesToPDF assembles remote images, listed as a JSON array in the
// sorted_urls parameter, into one PDF in the given order.
func (h *ConvertHandler) ImagesToPDF(w http.ResponseWriter, r *http.Request) {
	raw := formValue(r, "sorted_urls")
	if raw == "" {
		http.Error(w, "sorted_urls is required", http.StatusBadRequest)
		return
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil || len(urls) == 0 {
		http.Error(w, "sorted_urls must be a non-empty JSON array", http.StatusBadRequest)
		return
	}

	pdf, err := h.convert.ImagesToPDF(r.Context(), urls)
	if err != nil {
		http.Error(w, "image assembly failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(pdf)
}

// Audio transcodes an upload to MP3, applying metadata passed as query
// parameters, and answers with the base64 payload plus its duration.
func (h *ConvertHandler) Audio(w http.ResponseWriter, r *http.Request) {
	data, _, ok := readUpload(w, r, h.maxInputBytes)
	if !ok {
		return
	}

	meta := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 && vs[0] != "" {
			meta[k] = vs[0]
		}
	}

	mp3, duration, err := h.convert.ConvertToMP3(r.Context(), data, meta)
	if err != nil {
		http.Error(w, "audio conversion failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"audio_b64": base64.StdEncoding.EncodeToString(mp3),
		"duration":  duration,
		"msg":       "Success",
	})
}
