package ocr

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool serializes CPU-heavy OCR work process-wide. OCR is CPU-bound and each
// engine call runs single-threaded (OMP_THREAD_LIMIT=1), so the pool is sized
// to roughly one worker per CPU. semaphore.Weighted admits waiters in FIFO
// order, so one large document cannot starve the others.
type Pool struct {
	sem         *semaphore.Weighted
	engine      Engine
	pageTimeout time.Duration
}

// NewPool builds the process-wide OCR pool. pageTimeout caps one page's
// recognition distinctly from the enclosing stage timeout, so a pathological
// page cannot eat the budget of the rest of a document.
func NewPool(engine Engine, workers int, pageTimeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		sem:         semaphore.NewWeighted(int64(workers)),
		engine:      engine,
		pageTimeout: pageTimeout,
	}
}

// Recognize admits the caller to the pool, then runs OCR under the per-page
// deadline. Admission waits honor ctx cancellation.
func (p *Pool) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	if p.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pageTimeout)
		defer cancel()
	}
	return p.engine.Recognize(ctx, image, languages)
}
