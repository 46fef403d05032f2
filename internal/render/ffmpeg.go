package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoClips is returned when every per-slide clip failed to encode.
var ErrNoClips = errors.New("no video clips produced")

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegEncoder encodes one still-image clip per slide and concatenates them.
type FFmpegEncoder struct {
	path   string
	fps    int
	run    commandRunner
	logger *slog.Logger
}

func NewFFmpegEncoder(path string, fps int, logger *slog.Logger) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	if fps <= 0 {
		fps = 2
	}
	return &FFmpegEncoder{path: path, fps: fps, run: execRunner, logger: logger}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, dir string, images, audio []string) (string, error) {
	var clips []string
	for i := range images {
		clip := filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		if out, err := e.run(ctx, e.path, e.clipArgs(images[i], audio[i], clip)...); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.logger.Warn("clip encode failed, skipping slide",
				slog.Int("slide", i+1),
				slog.String("error", err.Error()),
				slog.String("output", tail(out, 300)))
			continue
		}
		clips = append(clips, clip)
	}
	if len(clips) == 0 {
		return "", ErrNoClips
	}

	list := filepath.Join(dir, "clips.txt")
	var b strings.Builder
	for _, c := range clips {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(c, "'", `'\''`))
	}
	if err := os.WriteFile(list, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}

	output := filepath.Join(dir, "output.mp4")
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", output}
	if out, err := e.run(ctx, e.path, args...); err != nil {
		return "", fmt.Errorf("concat clips: %w: %s", err, tail(out, 300))
	}
	return output, nil
}

func (e *FFmpegEncoder) clipArgs(image, audio, out string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-framerate", strconv.Itoa(e.fps),
		"-i", image,
		"-i", audio,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-preset", "ultrafast",
		"-b:v", "2000k",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		out,
	}
}

func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
