package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// DefaultSystemPrompt instructs the model to stay inside the retrieved
// context so grounding metrics mean something.
const DefaultSystemPrompt = `You are a helpful research assistant. Answer the user's question based ONLY on the provided context from their documents.
If the context doesn't contain enough information to answer the question, say so.
Be concise and cite the source documents where relevant.`

// Config holds all configuration values.
type Config struct {
	// Generation
	LLMProvider Provider `yaml:"llm_provider"`
	LLMModel    string   `yaml:"llm_model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Provider endpoints and credentials
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Retrieval
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	TopK            int     `yaml:"top_k"`
	SimilarityFloor float64 `yaml:"similarity_floor"`

	// Chat
	SystemPrompt string `yaml:"system_prompt"`
	HistoryLimit int    `yaml:"history_limit"`

	// Dashboard server
	ServerAddr string `yaml:"server_addr"`
	StaticDir  string `yaml:"static_dir"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// defaults returns the baseline configuration before file and env layers.
func defaults() Config {
	return Config{
		LLMProvider: ProviderOllama,
		LLMModel:    "llama3.2",
		Temperature: 0.7,
		MaxTokens:   1024,

		EmbedProvider:  ProviderOllama,
		EmbedModel:     "all-minilm:l6-v2",
		EmbedDimension: 384,

		OllamaHost: "http://localhost:11434",

		ChunkSize:       500,
		ChunkOverlap:    100,
		TopK:            3,
		SimilarityFloor: 0,

		SystemPrompt: DefaultSystemPrompt,
		HistoryLimit: 10,

		ServerAddr: "localhost:8000",
		StaticDir:  "web",

		LogFile:  "/tmp/doclens.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load builds configuration in three layers: defaults, an optional YAML
// file (DOCLENS_CONFIG or ~/.doclens.yaml), then environment variables.
// A .env file in the working directory is folded into the environment
// first if present.
func Load() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := defaults()

	path := os.Getenv("DOCLENS_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".doclens.yaml")
		}
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// loadFile overlays YAML values onto cfg. A missing file is fine; a
// malformed one is not.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LLMProvider = Provider(getEnv("DOCLENS_LLM_PROVIDER", string(cfg.LLMProvider)))
	cfg.LLMModel = getEnv("DOCLENS_LLM_MODEL", cfg.LLMModel)
	cfg.Temperature = getEnvFloat("DOCLENS_TEMPERATURE", cfg.Temperature)
	cfg.MaxTokens = getEnvInt("DOCLENS_MAX_TOKENS", cfg.MaxTokens)

	cfg.EmbedProvider = Provider(getEnv("DOCLENS_EMBED_PROVIDER", string(cfg.EmbedProvider)))
	cfg.EmbedModel = getEnv("DOCLENS_EMBED_MODEL", cfg.EmbedModel)
	cfg.EmbedDimension = getEnvInt("DOCLENS_EMBED_DIMENSION", cfg.EmbedDimension)

	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	cfg.ChunkSize = getEnvInt("DOCLENS_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("DOCLENS_CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.TopK = getEnvInt("DOCLENS_TOP_K", cfg.TopK)
	cfg.SimilarityFloor = getEnvFloat("DOCLENS_SIMILARITY_FLOOR", cfg.SimilarityFloor)

	cfg.SystemPrompt = getEnv("DOCLENS_SYSTEM_PROMPT", cfg.SystemPrompt)
	cfg.HistoryLimit = getEnvInt("DOCLENS_HISTORY_LIMIT", cfg.HistoryLimit)

	cfg.ServerAddr = getEnv("DOCLENS_SERVER_ADDR", cfg.ServerAddr)
	cfg.StaticDir = getEnv("DOCLENS_STATIC_DIR", cfg.StaticDir)

	cfg.LogFile = getEnv("DOCLENS_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("DOCLENS_LOG_LEVEL", ""))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
