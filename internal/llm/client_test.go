package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maraichr/slidepilot/internal/config"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("sk-test", "", "")
	if c.model != defaultModel {
		t.Errorf("expected default model %s, got %s", defaultModel, c.model)
	}
	if c.baseURL != defaultBaseURL {
		t.Errorf("expected default base URL %s, got %s", defaultBaseURL, c.baseURL)
	}
}

func TestNewClient_BaseURLNormalized(t *testing.T) {
	c := NewClient("k", "m", "https://openrouter.ai/api/v1/")
	want := "https://openrouter.ai/api/v1/chat/completions"
	if c.baseURL != want {
		t.Errorf("expected %s, got %s", want, c.baseURL)
	}
}

func TestClient_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing or wrong auth header")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  hello  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "m", srv.URL)
	got, err := Ask(context.Background(), c, "be brief", "say hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("expected trimmed content, got %q", got)
	}
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`slow down`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL)
	c.retryDelay = time.Millisecond

	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" || calls.Load() != 2 {
		t.Errorf("got %q after %d calls", got, calls.Load())
	}
}

func TestClient_Complete_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL)
	c.retryDelay = time.Millisecond

	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

type slowCompleter struct{ delay time.Duration }

func (s slowCompleter) Complete(ctx context.Context, _ []Message) (string, error) {
	select {
	case <-time.After(s.delay):
		return "late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (slowCompleter) Model() string { return "slow" }

func TestLimited_TimeoutFailsOnlyTheCall(t *testing.T) {
	l := NewLimited(slowCompleter{delay: time.Second}, 0, 0, 10*time.Millisecond)
	_, err := l.Complete(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if l.Model() != "slow" {
		t.Errorf("expected wrapped model name, got %s", l.Model())
	}
}

func TestNewCompleter_NoProvider(t *testing.T) {
	_, err := NewCompleter(context.Background(), &config.Config{})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestNewCompleter_UnknownProvider(t *testing.T) {
	_, err := NewCompleter(context.Background(), &config.Config{LLM: config.LLMConfig{Provider: "nope"}})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewCompleter_OpenAI(t *testing.T) {
	c, err := NewCompleter(context.Background(), &config.Config{LLM: config.LLMConfig{APIKey: "k", Model: "gpt-x"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Model() != "gpt-x" {
		t.Errorf("expected gpt-x, got %s", c.Model())
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose", `Here you go: {"a":{"b":"}"}} thanks`, `{"a":{"b":"}"}}`, true},
		{"escaped quote", `{"a":"x\"}"}`, `{"a":"x\"}"}`, true},
		{"none", `no json here`, "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	in := "```markdown\n# Title\n\nbody\n```"
	if got := StripFences(in); got != "# Title\n\nbody" {
		t.Errorf("unexpected: %q", got)
	}
	if got := StripFences("  no fence  "); got != "no fence" {
		t.Errorf("unexpected: %q", got)
	}
}
