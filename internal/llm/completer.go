package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maraichr/slidepilot/internal/config"
)

// ErrNoProvider is returned when no completion backend is configured.
var ErrNoProvider = errors.New("no LLM provider configured")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the single text-completion collaborator used by the pipeline.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Ask sends a single user prompt, optionally preceded by a system prompt.
func Ask(ctx context.Context, c Completer, system, prompt string) (string, error) {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: prompt})
	return c.Complete(ctx, msgs)
}

// NewCompleter selects a backend. An explicit LLM_PROVIDER wins; otherwise
// Anthropic > Gemini > OpenAI-compatible > Bedrock, by which credentials are set.
// The result is wrapped with rate limiting and a per-call timeout.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	provider := strings.ToLower(cfg.LLM.Provider)
	if provider == "" {
		switch {
		case cfg.Anthropic.APIKey != "":
			provider = "anthropic"
		case cfg.Gemini.APIKey != "":
			provider = "gemini"
		case cfg.LLM.APIKey != "":
			provider = "openai"
		case cfg.Bedrock.ModelID != "":
			provider = "bedrock"
		default:
			return nil, ErrNoProvider
		}
	}

	var (
		base Completer
		err  error
	)
	switch provider {
	case "anthropic":
		base = NewAnthropicClient(cfg.Anthropic.APIKey, firstNonEmpty(cfg.LLM.Model, cfg.Anthropic.Model))
	case "gemini":
		base, err = NewGeminiClient(ctx, cfg.Gemini.APIKey, firstNonEmpty(cfg.LLM.Model, cfg.Gemini.Model))
	case "openai", "openrouter":
		base = NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	case "bedrock":
		base, err = NewBedrockClient(ctx, cfg.Bedrock)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", provider, err)
	}

	return NewLimited(base, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst, cfg.LLM.CallTimeout), nil
}

// splitSystem separates system messages from the conversation for APIs that
// take the system prompt as a dedicated field.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
