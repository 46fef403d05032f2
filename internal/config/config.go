package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Valkey    ValkeyConfig
	MinIO     MinIOConfig
	S3        S3Config
	Bedrock   BedrockConfig
	LLM       LLMConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Search    SearchConfig
	TTS       TTSConfig
	Pipeline  PipelineConfig
	Render    RenderConfig
	Auth      AuthConfig
	MCP       MCPConfig
	Local     LocalConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Config struct {
	Region   string // S3_REGION
	Endpoint string // S3_ENDPOINT (for MinIO/LocalStack compatibility)
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

// LLMConfig configures the completion backend shared by every stage.
type LLMConfig struct {
	Provider          string // openai, bedrock, anthropic, gemini; empty auto-selects
	APIKey            string
	Model             string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	CallTimeout       time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SearchConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

type TTSConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Speed   float64
	Timeout time.Duration
}

type PipelineConfig struct {
	Threshold      float64
	MaxAttempts    int
	ChunkSize      int
	ChunkOverlap   int
	MaxChunks      int
	PointsPerChunk int
	KeyPointTarget int
	MaxConcurrency int
	Language       string
	Theme          string
	HandoutFont    string // UTF-8 TTF for handout PDFs
}

type RenderConfig struct {
	Mode          string // valkey or local
	LocalWorkers  int
	FFmpegPath    string
	ChromePath    string
	FPS           int
	TempDir       string
	StaleAfter    time.Duration
	LostAfter     time.Duration // processing longer than this is failed by the sweeper
	SweepSchedule string
	JobTimeout    time.Duration
	ConsumerID    string // stream consumer name, stable across restarts
}

type AuthConfig struct {
	Enabled      bool
	IssuerURL    string
	PublicIssuer string
	Audience     string
}

type MCPConfig struct {
	Addr    string
	BaseURL string // public URL, enables RFC 9728 metadata
}

type LocalConfig struct {
	DataDir string
}

// Load builds the configuration from environment variables. When SLIDEPILOT_CONFIG
// names a TOML file, its keys (the same names as the environment variables) supply
// defaults that the environment still overrides.
func Load() (*Config, error) {
	l := &loader{}
	if path := os.Getenv("SLIDEPILOT_CONFIG"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		l.file = values
	}
	return l.load(), nil
}

// readFile decodes a flat TOML document into string values keyed like env vars.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: key %s must be a scalar", path, k)
		default:
			values[k] = fmt.Sprint(tv)
		}
	}
	return values, nil
}

type loader struct {
	file map[string]string
}

func (l *loader) load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         l.getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         l.getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  l.getEnvSecs("SERVER_READ_TIMEOUT_SECS", 30),
			WriteTimeout: l.getEnvSecs("SERVER_WRITE_TIMEOUT_SECS", 600),
		},
		Database: DatabaseConfig{
			Host:     l.getEnv("DB_HOST", "localhost"),
			Port:     l.getEnvInt("DB_PORT", 5432),
			User:     l.getEnv("DB_USER", "slidepilot"),
			Password: l.getEnv("DB_PASSWORD", "slidepilot"),
			Name:     l.getEnv("DB_NAME", "slidepilot"),
			SSLMode:  l.getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(l.getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(l.getEnvInt("DB_MIN_CONNS", 2)),
		},
		Valkey: ValkeyConfig{
			Addr:     l.getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: l.getEnv("VALKEY_PASSWORD", ""),
			DB:       l.getEnvInt("VALKEY_DB", 0),
			CacheTTL: l.getEnvSecs("VALKEY_CACHE_TTL_SECS", 24*60*60),
		},
		MinIO: MinIOConfig{
			Endpoint:  l.getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: l.getEnv("MINIO_ACCESS_KEY", "slidepilot"),
			SecretKey: l.getEnv("MINIO_SECRET_KEY", "slidepilot123"),
			Bucket:    l.getEnv("MINIO_BUCKET", "slide-files"),
			UseSSL:    l.getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Region:   l.getEnv("S3_REGION", ""),
			Endpoint: l.getEnv("S3_ENDPOINT", ""),
		},
		Bedrock: BedrockConfig{
			Region:  l.getEnv("BEDROCK_REGION", "us-east-1"),
			ModelID: l.getEnv("BEDROCK_MODEL_ID", ""),
		},
		LLM: LLMConfig{
			Provider:          l.getEnv("LLM_PROVIDER", ""),
			APIKey:            l.getEnv("OPENAI_API_KEY", ""),
			Model:             l.getEnv("LLM_MODEL", ""),
			BaseURL:           l.getEnv("LLM_BASE_URL", ""),
			RequestsPerSecond: l.getEnvFloat("LLM_RPS", 2),
			Burst:             l.getEnvInt("LLM_BURST", 5),
			CallTimeout:       l.getEnvSecs("LLM_CALL_TIMEOUT_SECS", 120),
		},
		Anthropic: AnthropicConfig{
			APIKey: l.getEnv("ANTHROPIC_API_KEY", ""),
			Model:  l.getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		},
		Gemini: GeminiConfig{
			APIKey: l.getEnv("GEMINI_API_KEY", ""),
			Model:  l.getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Search: SearchConfig{
			APIKey:     l.getEnv("TAVILY_API_KEY", ""),
			BaseURL:    l.getEnv("TAVILY_BASE_URL", "https://api.tavily.com/search"),
			MaxResults: l.getEnvInt("SEARCH_MAX_RESULTS", 5),
			Timeout:    l.getEnvSecs("SEARCH_TIMEOUT_SECS", 30),
		},
		TTS: TTSConfig{
			APIKey:  l.getEnv("TTS_API_KEY", l.getEnv("OPENAI_API_KEY", "")),
			BaseURL: l.getEnv("TTS_BASE_URL", "https://api.openai.com/v1/audio/speech"),
			Model:   l.getEnv("TTS_MODEL", "tts-1-hd"),
			Voice:   l.getEnv("TTS_VOICE", "shimmer"),
			Speed:   l.getEnvFloat("TTS_SPEED", 1.0),
			Timeout: l.getEnvSecs("TTS_TIMEOUT_SECS", 60),
		},
		Pipeline: PipelineConfig{
			Threshold:      l.getEnvFloat("PIPELINE_THRESHOLD", 8.0),
			MaxAttempts:    l.getEnvInt("PIPELINE_MAX_ATTEMPTS", 3),
			ChunkSize:      l.getEnvInt("PIPELINE_CHUNK_SIZE", 4000),
			ChunkOverlap:   l.getEnvInt("PIPELINE_CHUNK_OVERLAP", 200),
			MaxChunks:      l.getEnvInt("PIPELINE_MAX_CHUNKS", 20),
			PointsPerChunk: l.getEnvInt("PIPELINE_POINTS_PER_CHUNK", 3),
			KeyPointTarget: l.getEnvInt("PIPELINE_KEY_POINTS", 5),
			MaxConcurrency: l.getEnvInt("PIPELINE_MAX_CONCURRENCY", 5),
			Language:       l.getEnv("PIPELINE_LANGUAGE", "ja"),
			Theme:          l.getEnv("PIPELINE_THEME", "default"),
			HandoutFont:    l.getEnv("PIPELINE_HANDOUT_FONT", ""),
		},
		Render: RenderConfig{
			Mode:          l.getEnv("RENDER_MODE", "valkey"),
			LocalWorkers:  l.getEnvInt("RENDER_LOCAL_WORKERS", 2),
			FFmpegPath:    l.getEnv("FFMPEG_PATH", "ffmpeg"),
			ChromePath:    l.getEnv("CHROME_PATH", ""),
			FPS:           l.getEnvInt("RENDER_FPS", 2),
			TempDir:       l.getEnv("RENDER_TEMP_DIR", os.TempDir()),
			StaleAfter:    l.getEnvSecs("RENDER_STALE_AFTER_SECS", 300),
			LostAfter:     l.getEnvSecs("RENDER_LOST_AFTER_SECS", 2100),
			SweepSchedule: l.getEnv("RENDER_SWEEP_SCHEDULE", "@every 1m"),
			JobTimeout:    l.getEnvSecs("RENDER_JOB_TIMEOUT_SECS", 1800),
			ConsumerID:    l.getEnv("RENDER_CONSUMER_ID", defaultConsumerID()),
		},
		Auth: AuthConfig{
			Enabled:      l.getEnvBool("AUTH_ENABLED", false),
			IssuerURL:    l.getEnv("AUTH_ISSUER_URL", ""),
			PublicIssuer: l.getEnv("AUTH_PUBLIC_ISSUER", ""),
			Audience:     l.getEnv("AUTH_AUDIENCE", "slidepilot"),
		},
		MCP: MCPConfig{
			Addr:    l.getEnv("MCP_ADDR", ":8090"),
			BaseURL: l.getEnv("MCP_BASE_URL", ""),
		},
		Local: LocalConfig{
			DataDir: l.getEnv("LOCAL_DATA_DIR", ".slidepilot"),
		},
	}
}

// defaultConsumerID names the stream consumer after the host, which stays the
// same across restarts of a container or VM.
func defaultConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "render-" + host
}

func (l *loader) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	if v, ok := l.file[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (l *loader) getEnv(key, fallback string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return fallback
}

func (l *loader) getEnvInt(key string, fallback int) int {
	if v, ok := l.lookup(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func (l *loader) getEnvFloat(key string, fallback float64) float64 {
	if v, ok := l.lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (l *loader) getEnvBool(key string, fallback bool) bool {
	if v, ok := l.lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func (l *loader) getEnvSecs(key string, fallback int) time.Duration {
	return time.Duration(l.getEnvInt(key, fallback)) * time.Second
}
