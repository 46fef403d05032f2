package narration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maraichr/slidepilot/internal/batch"
)

// Synthesizer writes one audio file per narration into a directory.
type Synthesizer struct {
	speaker        Speaker
	maxConcurrency int
	unitTimeout    time.Duration
}

func NewSynthesizer(speaker Speaker, maxConcurrency int, unitTimeout time.Duration) *Synthesizer {
	return &Synthesizer{speaker: speaker, maxConcurrency: maxConcurrency, unitTimeout: unitTimeout}
}

// AudioFileName is the file written for the slide at index i (0-based).
func AudioFileName(i int) string {
	return fmt.Sprintf("narration_%03d.mp3", i)
}

// Synthesize returns the audio paths in narration order. The first failure
// cancels the rest and every file already written is removed.
func (s *Synthesizer) Synthesize(ctx context.Context, dir string, narrations []string) ([]string, error) {
	worker := func(ctx context.Context, i int, text string) (string, error) {
		audio, err := s.speaker.Speak(ctx, text)
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, AudioFileName(i))
		if err := os.WriteFile(path, audio, 0o600); err != nil {
			return "", fmt.Errorf("write audio: %w", err)
		}
		return path, nil
	}

	paths, err := batch.Run(ctx, narrations, worker, batch.Options[string, string]{
		MaxConcurrency: s.maxConcurrency,
		Policy:         batch.FailFast,
		UnitTimeout:    s.unitTimeout,
		Release:        func(path string) { _ = os.Remove(path) },
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize narration: %w", err)
	}
	return paths, nil
}
