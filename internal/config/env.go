package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	ScratchDir      string
	OCRWorkers      int
	OCRLanguages    string
	StageTimeout    time.Duration
	PageOCRTimeout  time.Duration
	MaxInputBytes   int64
	MaxOutputBytes  int64
	MaxArchiveDepth int
	SpeechToTextCmd string
}

// LoadConfig loads the environment variables and returns the config.
// Every knob has a documented default; oversized input is rejected up front
// rather than processed (fail closed).
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5050"),
		ScratchDir:      getEnv("SCRATCH_DIR", os.TempDir()),
		OCRWorkers:      getEnvInt("OCR_WORKERS", runtime.NumCPU()),
		OCRLanguages:    getEnv("OCR_LANGUAGES", "eng"),
		StageTimeout:    time.Duration(getEnvInt("STAGE_TIMEOUT_SECS", 120)) * time.Second,
		PageOCRTimeout:  time.Duration(getEnvInt("PAGE_OCR_TIMEOUT_SECS", 30)) * time.Second,
		MaxInputBytes:   int64(getEnvInt("MAX_INPUT_MB", 100)) << 20,
		MaxOutputBytes:  int64(getEnvInt("MAX_OUTPUT_MB", 50)) << 20,
		MaxArchiveDepth: getEnvInt("MAX_ARCHIVE_DEPTH", 3),
		SpeechToTextCmd: getEnv("SPEECH_TO_TEXT_CMD", ""),
	}

	if cfg.OCRWorkers < 1 {
		cfg.OCRWorkers = 1
	}

	// Each OCR worker should stay single-threaded; scaling happens through the
	// worker pool, not inside tesseract.
	if os.Getenv("OMP_THREAD_LIMIT") == "" {
		os.Setenv("OMP_THREAD_LIMIT", "1")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
