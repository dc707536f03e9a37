// Package config provides environment configuration for BuddyAI.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the gateway server.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// LLM settings
	LLMProvider     string
	OllamaURL       string
	ChatModel       string
	EmbedModel      string
	AnthropicAPIKey string

	// Vector memory settings
	MemoryEnabled          bool
	MemoryRetrievalEnabled bool
	MemoryCollection       string
	MemoryDir              string

	// NATS settings (exchange events; disabled when URL is empty)
	NATSURL   string
	NATSToken string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// ClientConfig holds configuration for the terminal chat client.
type ClientConfig struct {
	// GatewayURL is the base URL of the chat gateway.
	GatewayURL string
	// DataDir holds the conversation database.
	DataDir string
	// MinReplyDelay is the minimum delay between a sent message and the
	// displayed reply. Pacing only, not a correctness requirement.
	MinReplyDelay time.Duration
	// RequestTimeout bounds a single chat exchange.
	RequestTimeout time.Duration

	LogLevel string
}

// Load reads gateway configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "5000"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
		ChatModel:       getEnv("CHAT_MODEL", "phi3:mini"),
		EmbedModel:      getEnv("EMBED_MODEL", "nomic-embed-text"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		// Memory
		MemoryEnabled:          getBoolEnv("MEMORY_ENABLED", true),
		MemoryRetrievalEnabled: getBoolEnv("MEMORY_RETRIEVAL_ENABLED", false),
		MemoryCollection:       getEnv("MEMORY_COLLECTION", "buddyai-memory"),
		MemoryDir:              getEnv("MEMORY_DIR", "./memory-db"),

		// NATS
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// LoadClient reads terminal client configuration from environment variables.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		GatewayURL:     getEnv("BUDDYAI_URL", "http://localhost:5000"),
		DataDir:        getEnv("BUDDYAI_DATA_DIR", defaultDataDir()),
		MinReplyDelay:  getDurationEnv("MIN_REPLY_DELAY", time.Second),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 2*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buddyai"
	}
	return filepath.Join(home, ".buddyai")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
