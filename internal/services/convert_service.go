package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/markdave123-py/doctor/internal/core/toolrunner"
	"github.com/markdave123-py/doctor/internal/models"
)

// maxImageDownloadBytes caps one remote image fetched for PDF assembly.
const maxImageDownloadBytes = 100 << 20

// ConvertService covers the conversion utilities around the extraction
// pipeline: PDF thumbnails, page counts, and audio transcoding. Everything
// shells through the tool runner so the timeout/output/scratch discipline is
// the same as for extraction stages.
type ConvertService struct {
	runner  *toolrunner.Runner
	scratch *toolrunner.Scratch
}

func NewConvertService(runner *toolrunner.Runner, scratch *toolrunner.Scratch) *ConvertService {
	return &ConvertService{runner: runner, scratch: scratch}
}

// PDFThumbnail renders the first page of a PDF as a PNG bounded by
// maxDimension pixels on its longest side.
func (s *ConvertService) PDFThumbnail(ctx context.Context, pdf []byte, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 {
		maxDimension = 350
	}

	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	inputPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(inputPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("stage input: %w", err)
	}

	prefix := filepath.Join(dir, "thumbnail")
	stage := models.Stage{
		Name: "pdf-thumbnail",
		Kind: models.StageExec,
		Command: []string{
			"pdftoppm", "-png", "-f", "1", "-l", "1", "-singlefile",
			"-scale-to", strconv.Itoa(maxDimension), "{input}", prefix,
		},
	}
	res := s.runner.RunToFile(ctx, stage, inputPath, prefix+".png", dir)
	if res.Status != models.StageSuccess {
		return nil, fmt.Errorf("thumbnail generation failed: %s", res.Diagnostic)
	}
	return os.ReadFile(prefix + ".png")
}

// ImageToPDF converts an uploaded image (court scans are usually TIFF) into
// a PDF document, one page per frame.
func (s *ConvertService) ImageToPDF(ctx context.Context, image []byte) ([]byte, error) {
	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	inputPath := filepath.Join(dir, "input.img")
	if err := os.WriteFile(inputPath, image, 0o600); err != nil {
		return nil, fmt.Errorf("stage input: %w", err)
	}

	outPath := filepath.Join(dir, "output.pdf")
	if err := api.ImportImagesFile([]string{inputPath}, outPath, nil, nil); err != nil {
		return nil, fmt.Errorf("image to pdf: %w", err)
	}
	return os.ReadFile(outPath)
}

// ImagesToPDF downloads the given image URLs in order and assembles them into
// a single PDF, one image per page.
func (s *ConvertService) ImagesToPDF(ctx context.Context, urls []string) ([]byte, error) {
	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	client := &http.Client{Timeout: 5 * time.Minute}
	paths := make([]string, 0, len(urls))
	for i, u := range urls {
		data, err := fetchImage(ctx, client, u)
		if err != nil {
			return nil, fmt.Errorf("download image %d: %w", i, err)
		}
		p := filepath.Join(dir, fmt.Sprintf("image-%04d", i))
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return nil, fmt.Errorf("stage image %d: %w", i, err)
		}
		paths = append(paths, p)
	}

	outPath := filepath.Join(dir, "output.pdf")
	if err := api.ImportImagesFile(paths, outPath, nil, nil); err != nil {
		return nil, fmt.Errorf("images to pdf: %w", err)
	}
	return os.ReadFile(outPath)
}

func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageDownloadBytes))
}

// AudioDuration probes the duration of an audio payload in seconds.
func (s *ConvertService) AudioDuration(ctx context.Context, audio []byte) (float64, error) {
	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	inputPath := filepath.Join(dir, "input.audio")
	if err := os.WriteFile(inputPath, audio, 0o600); err != nil {
		return 0, fmt.Errorf("stage input: %w", err)
	}
	return s.probeDuration(ctx, inputPath, dir)
}

// PDFPageCount returns the number of pages in a PDF payload.
func (s *ConvertService) PDFPageCount(ctx context.Context, pdf []byte) (int, error) {
	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	inputPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(inputPath, pdf, 0o600); err != nil {
		return 0, fmt.Errorf("stage input: %w", err)
	}
	return api.PageCountFile(inputPath)
}

// ConvertToMP3 transcodes an audio payload to MP3 via ffmpeg, applying the
// given ID3 metadata, and probes the resulting duration in seconds.
func (s *ConvertService) ConvertToMP3(ctx context.Context, audio []byte, meta map[string]string) ([]byte, float64, error) {
	dir, release, err := s.scratch.Acquire()
	if err != nil {
		return nil, 0, err
	}
	defer release()

	inputPath := filepath.Join(dir, "input.audio")
	if err := os.WriteFile(inputPath, audio, 0o600); err != nil {
		return nil, 0, fmt.Errorf("stage input: %w", err)
	}

	outPath := filepath.Join(dir, "output.mp3")
	argv := []string{"ffmpeg", "-y", "-i", "{input}", "-codec:a", "libmp3lame", "-qscale:a", "5"}
	for _, k := range sortedKeys(meta) {
		argv = append(argv, "-metadata", fmt.Sprintf("%s=%s", k, meta[k]))
	}
	argv = append(argv, "{output}")

	stage := models.Stage{
		Name:    "audio-to-mp3",
		Kind:    models.StageExec,
		Command: argv,
		Timeout: 5 * time.Minute,
	}
	res := s.runner.RunToFile(ctx, stage, inputPath, outPath, dir)
	if res.Status != models.StageSuccess {
		return nil, 0, fmt.Errorf("audio conversion failed: %s", res.Diagnostic)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, 0, err
	}

	duration, err := s.probeDuration(ctx, outPath, dir)
	if err != nil {
		// Duration is best effort; the transcoded payload is still good.
		duration = 0
	}
	return out, duration, nil
}

func (s *ConvertService) probeDuration(ctx context.Context, path, scratchDir string) (float64, error) {
	stage := models.Stage{
		Name: "audio-duration",
		Kind: models.StageExec,
		Command: []string{
			"ffprobe", "-v", "error", "-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1", "{input}",
		},
	}
	res := s.runner.Run(ctx, stage, path, scratchDir)
	if res.Status != models.StageSuccess {
		return 0, fmt.Errorf("ffprobe failed: %s", res.Diagnostic)
	}
	return strconv.ParseFloat(strings.TrimSpace(res.Text), 64)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
