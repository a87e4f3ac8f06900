package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	GoogleApiKey   string
	FirecrawlKey   string
	FirecrawlURL   string
	DatabaseURL    string
	ReasoningModel string
	FastModel      string
	Port           string

	// Engine tuning
	DefaultBreadth   int
	DefaultDepth     int
	ConcurrencyLimit int
	FetchTimeout     time.Duration
	ExtractTimeout   time.Duration
	ContextSize      int

	// Search provider: "firecrawl" or "arxiv"
	SearchProvider string

	// Learning store
	EmbeddingModel     string
	EmbeddingDimension int

	// Telemetry
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() *Config {
	return &Config{
		GoogleApiKey:   getEnv("GOOGLE_API_KEY", ""),
		FirecrawlKey:   getEnv("FIRECRAWL_KEY", ""),
		FirecrawlURL:   getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ReasoningModel: getEnv("REASONING_MODEL", "gemini-3-pro-preview"),
		FastModel:      getEnv("FAST_MODEL", "gemini-3-flash-preview"),
		Port:           getEnv("PORT", "3000"),

		DefaultBreadth:   getEnvAsInt("RESEARCH_BREADTH", 3),
		DefaultDepth:     getEnvAsInt("RESEARCH_DEPTH", 2),
		ConcurrencyLimit: getEnvAsInt("CONCURRENCY_LIMIT", 3),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
		ExtractTimeout:   getEnvAsDuration("EXTRACT_TIMEOUT", 60*time.Second),
		ContextSize:      getEnvAsInt("CONTEXT_SIZE", 25000),

		SearchProvider: getEnv("SEARCH_PROVIDER", "firecrawl"),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		OTLPInsecure: getEnv("OTLP_INSECURE", "") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
