// Package ocr wraps optical character recognition behind a small engine
// contract so the pipeline never depends on a specific provider. The default
// engine is Tesseract via gosseract.
package ocr

import (
	"context"

	"github.com/otiai10/gosseract/v2"
)

// Engine is the provider contract: one encoded image in, recognized text out.
// Zero recognized characters with a nil error is a valid outcome (blank page).
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

// TesseractEngine implements Engine using the gosseract client. One client is
// created per call; clients are not safe for concurrent reuse.
type TesseractEngine struct{}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs OCR on a single image. gosseract has no context support, so
// the call runs on its own goroutine and the context deadline wins the race;
// the abandoned call finishes against its own client and is discarded.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if len(languages) > 0 {
			if err := client.SetLanguage(languages...); err != nil {
				done <- outcome{err: err}
				return
			}
		}
		if err := client.SetImageFromBytes(image); err != nil {
			done <- outcome{err: err}
			return
		}
		text, err := client.Text()
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-done:
		return o.text, o.err
	}
}
