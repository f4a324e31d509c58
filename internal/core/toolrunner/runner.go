// Package toolrunner executes extraction stages — external utilities and
// in-process converters alike — under one discipline: hard wall-clock
// timeout, capped output, captured diagnostics, side effects confined to a
// scratch directory.
package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/markdave123-py/doctor/internal/models"
)

// spawnRetries bounds retry attempts for transient subprocess launch
// failures. Each attempt is a fresh local process, so no backoff is needed.
const spawnRetries = 2

// BuiltinFunc is an in-process converter invoked for builtin stages. It reads
// the input file, may write only inside scratchDir, and returns extracted
// text. Timeout and truncation are applied by the runner.
type BuiltinFunc func(ctx context.Context, stage models.Stage, inputPath, scratchDir string) (string, error)

type Config struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
}

// Runner executes stages. Invocations for different documents may run in
// parallel; ordering within one document's chain is the orchestrator's job.
type Runner struct {
	cfg      Config
	builtins map[string]BuiltinFunc
}

func NewRunner(cfg Config) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 120 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 50 << 20
	}
	return &Runner{cfg: cfg, builtins: make(map[string]BuiltinFunc)}
}

// RegisterBuiltin wires an in-process converter under the given key.
// Registration happens once at startup, before any document is processed.
func (r *Runner) RegisterBuiltin(key string, fn BuiltinFunc) {
	r.builtins[key] = fn
}

// Run executes a stage against inputPath and captures its text output.
// Errors never escape as raw errors: every outcome is folded into the
// returned StageResult.
func (r *Runner) Run(ctx context.Context, stage models.Stage, inputPath, scratchDir string) models.StageResult {
	start := time.Now()
	res := r.execute(ctx, stage, inputPath, "", scratchDir)
	res.Duration = time.Since(start)
	return res
}

// RunToFile executes an exec stage whose product is a file (rasterized page,
// transcoded audio) rather than text. The stage command's {output}
// placeholder is substituted with outputPath.
func (r *Runner) RunToFile(ctx context.Context, stage models.Stage, inputPath, outputPath, scratchDir string) models.StageResult {
	start := time.Now()
	res := r.execute(ctx, stage, inputPath, outputPath, scratchDir)
	res.Duration = time.Since(start)

	// stdout is not the product here; the output file decides the verdict,
	// even when a chatty tool blew past the stdout cap.
	if res.Status == models.StageSuccess || res.Status == models.StageEmpty || res.Status == models.StageTruncated {
		res.Text = ""
		info, err := os.Stat(outputPath)
		switch {
		case err != nil:
			res.Status = models.StageFailure
			res.Diagnostic = "tool produced no output file"
		case info.Size() > r.cfg.MaxOutputBytes:
			os.Remove(outputPath)
			res.Status = models.StageTruncated
			res.Diagnostic = fmt.Sprintf("output file exceeded %d bytes", r.cfg.MaxOutputBytes)
		default:
			res.Status = models.StageSuccess
			res.Diagnostic = ""
		}
	}
	return res
}

func (r *Runner) execute(ctx context.Context, stage models.Stage, inputPath, outputPath, scratchDir string) models.StageResult {
	res := models.StageResult{Stage: stage.Name, Seq: stage.Seq}

	timeout := stage.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch stage.Kind {
	case models.StageExec:
		r.runExec(ctx, stage, inputPath, outputPath, scratchDir, &res)
	case models.StageBuiltin:
		r.runBuiltin(ctx, stage, inputPath, scratchDir, &res)
	default:
		res.Status = models.StageFailure
		res.Diagnostic = fmt.Sprintf("unknown stage kind %q", stage.Kind)
	}
	return res
}

func (r *Runner) runExec(ctx context.Context, stage models.Stage, inputPath, outputPath, scratchDir string, res *models.StageResult) {
	if len(stage.Command) == 0 {
		res.Status = models.StageFailure
		res.Diagnostic = "exec stage has no command"
		return
	}

	argv := make([]string, len(stage.Command))
	for i, a := range stage.Command {
		a = strings.ReplaceAll(a, "{input}", inputPath)
		a = strings.ReplaceAll(a, "{output}", outputPath)
		argv[i] = a
	}

	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	var stderr bytes.Buffer

	var runErr error
	for attempt := 0; ; attempt++ {
		// Each attempt starts clean so a retry's diagnostic never carries a
		// prior attempt's output.
		stdout.Reset()
		stderr.Reset()

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = scratchDir
		cmd.Stdout = stdout
		cmd.Stderr = &stderr

		if err := cmd.Start(); err != nil {
			if attempt < spawnRetries && ctx.Err() == nil {
				log.Printf("ToolRunner: spawn %s failed (attempt %d): %v", argv[0], attempt+1, err)
				continue
			}
			res.Status = models.StageFailure
			res.Diagnostic = fmt.Sprintf("could not launch %s", argv[0])
			return
		}
		runErr = cmd.Wait()
		break
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = models.StageTimeout
		res.Diagnostic = fmt.Sprintf("%s exceeded stage timeout", argv[0])
	case runErr != nil:
		res.Status = models.StageFailure
		res.Diagnostic = redact(fmt.Sprintf("%s: %v: %s", argv[0], runErr, firstLine(stderr.String())), scratchDir)
	case stdout.truncated:
		res.Status = models.StageTruncated
		res.Text = stdout.String()
		res.Diagnostic = fmt.Sprintf("output capped at %d bytes", r.cfg.MaxOutputBytes)
	case strings.TrimSpace(stdout.String()) == "" && outputPath == "":
		res.Status = models.StageEmpty
	default:
		res.Status = models.StageSuccess
		res.Text = stdout.String()
	}
}

func (r *Runner) runBuiltin(ctx context.Context, stage models.Stage, inputPath, scratchDir string, res *models.StageResult) {
	fn, ok := r.builtins[stage.Builtin]
	if !ok {
		res.Status = models.StageFailure
		res.Diagnostic = fmt.Sprintf("no builtin registered for %q", stage.Builtin)
		return
	}

	text, err := fn(ctx, stage, inputPath, scratchDir)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = models.StageTimeout
		res.Diagnostic = fmt.Sprintf("%s exceeded stage timeout", stage.Builtin)
	case errors.Is(err, models.ErrRecursionLimitExceeded):
		res.Status = models.StageFailure
		res.Diagnostic = "archive recursion limit exceeded"
	case err != nil:
		res.Status = models.StageFailure
		res.Diagnostic = redact(fmt.Sprintf("%s: %v", stage.Builtin, err), scratchDir)
	case int64(len(text)) > r.cfg.MaxOutputBytes:
		res.Status = models.StageTruncated
		res.Text = text[:r.cfg.MaxOutputBytes]
		res.Diagnostic = fmt.Sprintf("output capped at %d bytes", r.cfg.MaxOutputBytes)
	case strings.TrimSpace(text) == "":
		res.Status = models.StageEmpty
	default:
		res.Status = models.StageSuccess
		res.Text = text
	}
}

// cappedBuffer keeps writing cheap while enforcing the output ceiling:
// bytes beyond the cap are counted but dropped.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remain := b.max - int64(b.buf.Len())
	if remain <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remain {
		b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string { return b.buf.String() }

func (b *cappedBuffer) Reset() {
	b.buf.Reset()
	b.truncated = false
}

// firstLine trims a stderr dump down to its first non-empty line.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// redact strips scratch paths from diagnostics and caps their length so raw
// tool output never reaches a client.
func redact(msg, scratchDir string) string {
	if scratchDir != "" {
		msg = strings.ReplaceAll(msg, scratchDir, "<scratch>")
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
