package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultSpeechURL = "https://api.openai.com/v1/audio/speech"
	defaultTTSModel  = "tts-1-hd"
	defaultVoice     = "shimmer"
)

// Speaker turns text into encoded audio.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// TTSClient calls an OpenAI-compatible audio/speech endpoint and returns MP3.
type TTSClient struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	speed   float64
	http    *http.Client
}

func NewTTSClient(apiKey, baseURL, model, voice string, speed float64, timeout time.Duration) *TTSClient {
	if baseURL == "" {
		baseURL = defaultSpeechURL
	}
	if model == "" {
		model = defaultTTSModel
	}
	if voice == "" {
		voice = defaultVoice
	}
	if speed <= 0 {
		speed = 1.0
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TTSClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		voice:   voice,
		speed:   speed,
		http:    &http.Client{Timeout: timeout},
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

func (c *TTSClient) Speak(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Voice:          c.voice,
		Input:          text,
		Speed:          c.speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, audio)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned no audio")
	}
	return audio, nil
}
