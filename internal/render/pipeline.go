package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maraichr/slidepilot/internal/deck"
)

// ErrNoSlides is returned when the payload markdown has no slides.
var ErrNoSlides = errors.New("deck has no slides")

type Narrator interface {
	Narrate(ctx context.Context, slides []string) ([]string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, dir string, narrations []string) ([]string, error)
}

// Imager writes one PNG per slide into dir.
type Imager interface {
	Capture(ctx context.Context, dir string, slides []string) ([]string, error)
}

// Encoder combines slide images and narration audio into one video.
type Encoder interface {
	Encode(ctx context.Context, dir string, images, audio []string) (string, error)
}

// Pipeline is the VideoRenderer used by the worker: narrate, synthesize,
// image, encode.
type Pipeline struct {
	narrator Narrator
	synth    Synthesizer
	imager   Imager
	encoder  Encoder
	logger   *slog.Logger
}

func NewPipeline(narrator Narrator, synth Synthesizer, imager Imager, encoder Encoder, logger *slog.Logger) *Pipeline {
	return &Pipeline{narrator: narrator, synth: synth, imager: imager, encoder: encoder, logger: logger}
}

func (p *Pipeline) Render(ctx context.Context, dir string, pl Payload) (string, error) {
	slides := deck.SplitSlides(pl.SlideMD)
	if len(slides) == 0 {
		return "", ErrNoSlides
	}

	narrations := pl.Narrations
	if len(narrations) != len(slides) {
		var err error
		narrations, err = p.narrator.Narrate(ctx, slides)
		if err != nil {
			return "", err
		}
	}

	audio, err := p.synth.Synthesize(ctx, dir, narrations)
	if err != nil {
		return "", err
	}

	images, err := p.imager.Capture(ctx, dir, slides)
	if err != nil {
		return "", fmt.Errorf("capture slides: %w", err)
	}

	n := min(len(images), len(audio))
	if n != len(images) || n != len(audio) {
		p.logger.Warn("slide and audio counts differ, trimming",
			slog.Int("images", len(images)),
			slog.Int("audio", len(audio)))
	}
	return p.encoder.Encode(ctx, dir, images[:n], audio[:n])
}
