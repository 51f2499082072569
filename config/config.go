// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds all tunables for the service. Every field has a default so the
// service can start against a local LM Studio + Ollama + FalkorDB setup
// without any environment at all.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// LLMBaseURL is the OpenAI-compatible endpoint for chat completions.
	LLMBaseURL string
	// LLMAPIKey is the API key for the endpoint. Local endpoints ignore it
	// but the client requires a non-empty value.
	LLMAPIKey string
	// Model is the default chat model name.
	Model string
	// VisionModel is the model used for page extraction during ingestion.
	VisionModel string

	// OllamaURL is the endpoint of the embedding server.
	OllamaURL string
	// EmbeddingModel is the embedding model name.
	EmbeddingModel string

	// GraphURL is the FalkorDB connection string, falkordb://host:port/graph.
	GraphURL string
	// PostgresURL, when set, selects the Postgres vector store backend.
	PostgresURL string
	// FallbackPath is the sqlite database used when the graph and vector
	// engines are unreachable.
	FallbackPath string

	// TavilyAPIKey enables the Tavily search provider.
	TavilyAPIKey string
	// BraveAPIKey enables the Brave search provider.
	BraveAPIKey string

	// MaxUploadBytes caps uploaded document size.
	MaxUploadBytes int64
	// IngestWorkers bounds concurrent page extraction calls.
	IngestWorkers int
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8000"),
		LLMBaseURL:     getenv("LLM_BASE_URL", "http://localhost:1234/v1"),
		LLMAPIKey:      getenv("LLM_API_KEY", "lm-studio"),
		Model:          getenv("MODEL_NAME", "qwen3-30b-a3b"),
		VisionModel:    getenv("VISION_MODEL_NAME", "qwen3-vl"),
		OllamaURL:      getenv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: getenv("EMBEDDING_MODEL", "nomic-embed-text:latest"),
		GraphURL:       getenv("GRAPH_URL", "falkordb://localhost:6379/knowledge"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		FallbackPath:   getenv("FALLBACK_DB", "inquiro_fallback.db"),
		TavilyAPIKey:   os.Getenv("TAVILY_API_KEY"),
		BraveAPIKey:    os.Getenv("BRAVE_API_KEY"),
		MaxUploadBytes: getenvInt64("MAX_UPLOAD_BYTES", 2_500_000),
		IngestWorkers:  getenvInt("INGEST_WORKERS", 5),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
