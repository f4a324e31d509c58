package app

import (
	"log"
	"strings"

	"github.com/markdave123-py/doctor/internal/config"
	"github.com/markdave123-py/doctor/internal/core/extraction_engine"
	"github.com/markdave123-py/doctor/internal/core/ocr"
	"github.com/markdave123-py/doctor/internal/core/registry"
	"github.com/markdave123-py/doctor/internal/core/sniffer"
	"github.com/markdave123-py/doctor/internal/core/toolrunner"
	"github.com/markdave123-py/doctor/internal/services"
)

type App struct {
	Orchestrator *extraction_engine.Orchestrator
	Server       *Server
}

// NewApp wires the pipeline: sniffer, strategy registry, tool runner with
// its builtins, the shared OCR pool, and the orchestrator on top, then the
// HTTP server around it all.
func NewApp(cfg *config.Config) *App {
	sn := sniffer.New()
	reg := registry.New(registry.Options{SpeechToTextCmd: cfg.SpeechToTextCmd})
	scratch := toolrunner.NewScratch(cfg.ScratchDir)

	runner := toolrunner.NewRunner(toolrunner.Config{
		DefaultTimeout: cfg.StageTimeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
	})
	extraction_engine.RegisterBuiltins(runner)

	pool := ocr.NewPool(ocr.NewTesseractEngine(), cfg.OCRWorkers, cfg.PageOCRTimeout)
	log.Printf("OCR pool ready with %d workers", cfg.OCRWorkers)

	orchestrator := extraction_engine.NewOrchestrator(extraction_engine.Config{
		MaxInputBytes:   cfg.MaxInputBytes,
		MaxArchiveDepth: cfg.MaxArchiveDepth,
		OCRFanout:       cfg.OCRWorkers,
		OCRLanguages:    splitLanguages(cfg.OCRLanguages),
	}, sn, reg, runner, pool, scratch)

	convert := services.NewConvertService(runner, scratch)
	server := NewServer(cfg, orchestrator, sn, convert)

	return &App{Orchestrator: orchestrator, Server: server}
}

func splitLanguages(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
