package narration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/slidepilot/internal/llm"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeLLM struct {
	fail map[string]bool
}

func (f fakeLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	prompt := msgs[len(msgs)-1].Content
	for k := range f.fail {
		if strings.Contains(prompt, k) {
			return "", errors.New("provider down")
		}
	}
	return "\"Narration for " + strings.TrimPrefix(prompt, "Slide content:\n") + "\"", nil
}

func (fakeLLM) Model() string { return "fake" }

func TestNarrate_OrderAndFallback(t *testing.T) {
	n := NewNarrator(fakeLLM{fail: map[string]bool{"beta": true}}, "ja", 2, 0, discard)

	out, err := n.Narrate(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Narration for alpha",
		"2枚目のスライドです。",
		"Narration for gamma",
	}, out)
}

func TestNarrate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewNarrator(fakeLLM{}, "en", 2, 0, discard)
	_, err := n.Narrate(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackText(t *testing.T) {
	assert.Equal(t, "3枚目のスライドです。", FallbackText(3, "ja"))
	assert.Equal(t, "Slide 3.", FallbackText(3, "en"))
}

func TestUserPrompt_Truncates(t *testing.T) {
	p := userPrompt(strings.Repeat("あ", 800))
	assert.Equal(t, maxSlideRunes, len([]rune(strings.TrimPrefix(p, "Slide content:\n"))))
}

func TestTTSClient_Speak(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-tts", r.Header.Get("Authorization"))
		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1-hd", req.Model)
		assert.Equal(t, "shimmer", req.Voice)
		assert.Equal(t, 1.0, req.Speed)
		w.Write([]byte("ID3audio-" + req.Input))
	}))
	defer srv.Close()

	c := NewTTSClient("sk-tts", srv.URL, "", "", 0, 0)
	audio, err := c.Speak(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ID3audio-hello", string(audio))
}

func TestTTSClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	_, err := NewTTSClient("x", srv.URL, "", "", 0, 0).Speak(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

type fakeSpeaker struct {
	fail string
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == f.fail {
		return nil, errors.New("tts failed")
	}
	return []byte("mp3:" + text), nil
}

func TestSynthesize_WritesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(&fakeSpeaker{}, 3, 0)

	paths, err := s.Synthesize(context.Background(), dir, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for i, p := range paths {
		assert.Equal(t, filepath.Join(dir, AudioFileName(i)), p)
	}
	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "mp3:two", string(data))
}

func TestSynthesize_FailureRemovesWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(&fakeSpeaker{fail: "two"}, 1, 0)

	paths, err := s.Synthesize(context.Background(), dir, []string{"one", "two", "three"})
	require.Error(t, err)
	assert.Nil(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAudioFileName(t *testing.T) {
	assert.Equal(t, "narration_007.mp3", AudioFileName(7))
}
