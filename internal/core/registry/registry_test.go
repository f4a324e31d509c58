package registry

import (
	"testing"

	"github.com/markdave123-py/doctor/internal/models"
)

func TestResolveSupportedFormats(t *testing.T) {
	r := New(Options{})

	supported := []models.Format{
		models.FormatPDF, models.FormatDocx, models.FormatDoc,
		models.FormatODT, models.FormatWPD, models.FormatRTF,
		models.FormatHTML, models.FormatTXT, models.FormatImage,
		models.FormatArchive,
	}
	for _, f := range supported {
		chain := r.Resolve(f)
		if len(chain.Stages) == 0 {
			t.Errorf("Resolve(%s) returned empty chain", f)
		}
	}
}

func TestResolveUnknownIsEmpty(t *testing.T) {
	r := New(Options{})
	if chain := r.Resolve(models.FormatUnknown); len(chain.Stages) != 0 {
		t.Fatalf("Resolve(unknown) = %d stages, want 0", len(chain.Stages))
	}
}

func TestAudioRequiresSpeechPipeline(t *testing.T) {
	// Without a configured speech command, audio has no chain and surfaces
	// as unsupported.
	r := New(Options{})
	if chain := r.Resolve(models.FormatAudio); len(chain.Stages) != 0 {
		t.Fatalf("audio chain should be empty without speech cmd, got %d stages", len(chain.Stages))
	}

	r = New(Options{SpeechToTextCmd: "whisper-cli --model base {input}"})
	chain := r.Resolve(models.FormatAudio)
	if len(chain.Stages) != 2 {
		t.Fatalf("audio chain = %d stages, want 2", len(chain.Stages))
	}
	if chain.Stages[0].Name != StageAudioTranscode || chain.Stages[1].Name != StageSpeechToText {
		t.Fatalf("unexpected audio chain order: %s, %s", chain.Stages[0].Name, chain.Stages[1].Name)
	}
}

func TestPDFChainOrder(t *testing.T) {
	r := New(Options{})
	chain := r.Resolve(models.FormatPDF)
	if len(chain.Stages) != 2 {
		t.Fatalf("pdf chain = %d stages, want 2", len(chain.Stages))
	}
	if chain.Stages[0].Name != StagePDFNativeText {
		t.Errorf("first pdf stage = %s, want native text", chain.Stages[0].Name)
	}
	if !chain.Stages[1].OnlyIfEmpty {
		t.Error("ocr fallback stage must be conditional on empty native text")
	}
}

func TestResolveReturnsCopies(t *testing.T) {
	r := New(Options{})
	chain := r.Resolve(models.FormatPDF)
	chain.Stages[0].Name = "mutated"

	if got := r.Resolve(models.FormatPDF).Stages[0].Name; got != StagePDFNativeText {
		t.Fatalf("registry state mutated through resolved chain: %s", got)
	}
}
