package toolrunner

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/doctor/internal/models"
)

func testRunner(t *testing.T, cfg Config) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRunner(cfg), dir
}

func shStage(name string, script string) models.Stage {
	return models.Stage{
		Name:    name,
		Kind:    models.StageExec,
		Command: []string{"sh", "-c", script},
	}
}

func TestRunSuccess(t *testing.T) {
	r, dir := testRunner(t, Config{})
	res := r.Run(context.Background(), shStage("echo", "printf 'extracted text'"), "", dir)
	if res.Status != models.StageSuccess {
		t.Fatalf("status = %s, want success (%s)", res.Status, res.Diagnostic)
	}
	if res.Text != "extracted text" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r, dir := testRunner(t, Config{})
	res := r.Run(context.Background(), shStage("boom", "echo 'tool blew up' >&2; exit 3"), "", dir)
	if res.Status != models.StageFailure {
		t.Fatalf("status = %s, want failure", res.Status)
	}
	if !strings.Contains(res.Diagnostic, "tool blew up") {
		t.Fatalf("diagnostic lost stderr summary: %q", res.Diagnostic)
	}
}

func TestRunTimeout(t *testing.T) {
	r, dir := testRunner(t, Config{})
	stage := shStage("slow", "sleep 5")
	stage.Timeout = 100 * time.Millisecond

	start := time.Now()
	res := r.Run(context.Background(), stage, "", dir)
	if res.Status != models.StageTimeout {
		t.Fatalf("status = %s, want timeout", res.Status)
	}
	// The stage must be killed near its deadline, not awaited.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s, runner hung past the deadline", elapsed)
	}
}

func TestRunOutputCap(t *testing.T) {
	r, dir := testRunner(t, Config{MaxOutputBytes: 64})
	res := r.Run(context.Background(), shStage("noisy", "yes spam | head -n 1000"), "", dir)
	if res.Status != models.StageTruncated {
		t.Fatalf("status = %s, want truncated", res.Status)
	}
	if len(res.Text) != 64 {
		t.Fatalf("kept %d bytes, want 64", len(res.Text))
	}
}

func TestRunEmptyOutput(t *testing.T) {
	r, dir := testRunner(t, Config{})
	res := r.Run(context.Background(), shStage("quiet", "true"), "", dir)
	if res.Status != models.StageEmpty {
		t.Fatalf("status = %s, want empty", res.Status)
	}
}

func TestRunInputSubstitution(t *testing.T) {
	r, dir := testRunner(t, Config{})
	input := dir + "/input.txt"
	os.WriteFile(input, []byte("file content"), 0o600)

	res := r.Run(context.Background(), models.Stage{
		Name:    "cat",
		Kind:    models.StageExec,
		Command: []string{"cat", "{input}"},
	}, input, dir)
	if res.Status != models.StageSuccess || res.Text != "file content" {
		t.Fatalf("got %s %q", res.Status, res.Text)
	}
}

func TestRunUnknownBuiltin(t *testing.T) {
	r, dir := testRunner(t, Config{})
	res := r.Run(context.Background(), models.Stage{
		Name:    "mystery",
		Kind:    models.StageBuiltin,
		Builtin: "nope",
	}, "", dir)
	if res.Status != models.StageFailure {
		t.Fatalf("status = %s, want failure", res.Status)
	}
}

func TestRunBuiltin(t *testing.T) {
	r, dir := testRunner(t, Config{})
	r.RegisterBuiltin("upper", func(ctx context.Context, stage models.Stage, inputPath, scratchDir string) (string, error) {
		return "BUILTIN TEXT", nil
	})

	res := r.Run(context.Background(), models.Stage{
		Name:    "upper-stage",
		Kind:    models.StageBuiltin,
		Builtin: "upper",
	}, "", dir)
	if res.Status != models.StageSuccess || res.Text != "BUILTIN TEXT" {
		t.Fatalf("got %s %q", res.Status, res.Text)
	}
}

func TestRunToFileMissingOutput(t *testing.T) {
	r, dir := testRunner(t, Config{})
	res := r.RunToFile(context.Background(), shStage("noop", "true"), "", dir+"/never-written.png", dir)
	if res.Status != models.StageFailure {
		t.Fatalf("status = %s, want failure for missing output file", res.Status)
	}
}

func TestRunToFileSuccess(t *testing.T) {
	r, dir := testRunner(t, Config{})
	out := dir + "/out.bin"
	res := r.RunToFile(context.Background(), models.Stage{
		Name:    "writer",
		Kind:    models.StageExec,
		Command: []string{"sh", "-c", "printf data > {output}"},
	}, "", out, dir)
	if res.Status != models.StageSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Diagnostic)
	}
}

func TestRunToFileIgnoresStdoutNoise(t *testing.T) {
	// A chatty tool can blow past the stdout cap while still producing a
	// perfectly good output file; the file decides the verdict.
	r, dir := testRunner(t, Config{MaxOutputBytes: 64})
	out := dir + "/out.bin"
	res := r.RunToFile(context.Background(), models.Stage{
		Name:    "chatty-writer",
		Kind:    models.StageExec,
		Command: []string{"sh", "-c", "yes noise | head -n 100; printf data > {output}"},
	}, "", out, dir)
	if res.Status != models.StageSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Diagnostic)
	}
	if res.Text != "" {
		t.Fatalf("stdout noise leaked into text: %q", res.Text)
	}
}

func TestRedact(t *testing.T) {
	got := redact("error reading /tmp/doctor-abc/input.pdf: boom", "/tmp/doctor-abc")
	if strings.Contains(got, "/tmp/doctor-abc") {
		t.Fatalf("scratch path leaked: %q", got)
	}

	long := strings.Repeat("x", 500)
	if got := redact(long, ""); len(got) != 200 {
		t.Fatalf("diagnostic not capped: %d bytes", len(got))
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)
	b.Write([]byte("12345678"))
	if b.String() != "12345" || !b.truncated {
		t.Fatalf("got %q truncated=%v", b.String(), b.truncated)
	}

	b = newCappedBuffer(10)
	b.Write([]byte("1234"))
	if b.truncated {
		t.Fatal("buffer under cap flagged truncated")
	}
}

func TestCappedBufferReset(t *testing.T) {
	b := newCappedBuffer(5)
	b.Write([]byte("12345678"))

	b.Reset()
	if b.String() != "" || b.truncated {
		t.Fatalf("reset left state behind: %q truncated=%v", b.String(), b.truncated)
	}
	b.Write([]byte("abc"))
	if b.String() != "abc" || b.truncated {
		t.Fatalf("buffer unusable after reset: %q truncated=%v", b.String(), b.truncated)
	}
}

func TestScratchRelease(t *testing.T) {
	s := NewScratch(t.TempDir())
	dir, release, err := s.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(dir+"/leftover.tmp", []byte("x"), 0o600)

	release()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("scratch dir %s survived release", dir)
	}
}
