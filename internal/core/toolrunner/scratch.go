package toolrunner

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch hands out per-invocation scratch directories under one root.
// Every side effect of a pipeline run is confined to its directory, and the
// release func removes it whatever the outcome.
type Scratch struct {
	root string
}

func NewScratch(root string) *Scratch {
	return &Scratch{root: root}
}

// Acquire creates a fresh scratch directory and returns it with its release
// func. Callers must defer the release.
func (s *Scratch) Acquire() (string, func(), error) {
	dir := filepath.Join(s.root, "doctor-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			// Nothing actionable for the caller; the next run gets a new dir.
			log.Printf("Scratch: release %s: %v", dir, err)
		}
	}
	return dir, release, nil
}
