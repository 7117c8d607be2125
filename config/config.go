package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenRouterAPIKey string
	OpenRouterURL    string
	OpenRouterModel  string

	HFToken        string
	HFInferenceURL string // "https://router.huggingface.co/hf-inference"
	HFChatRepo     string
	HFTemperature  float32

	// carried for parity with the deployment env, nothing reads it yet
	NewsAPIKey string

	EmbeddingProvider string // huggingface | ollama | simple
	EmbeddingModel    string
	OllamaURL         string

	VectorStore   string // local | mongo
	PersistDir    string
	Collection    string
	MongoURI      string
	MongoDatabase string

	RawCSV   string
	WatchCSV bool

	Port        string
	Environment string

	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// Load merges an optional .env file into the environment and reads the config from it.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not read .env file: %v", err)
	}

	getEnv := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	getEnvInt := func(key string, defaultValue int) int {
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

	getEnvFloat := func(key string, defaultValue float32) float32 {
		value, err := strconv.ParseFloat(os.Getenv(key), 32)
		if err != nil {
			return defaultValue
		}
		return float32(value)
	}

	getEnvBool := func(key string, defaultValue bool) bool {
		value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
		if err != nil {
			return defaultValue
		}
		return value
	}

	return &Config{
		// OpenRouter
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "mistralai/mistral-7b-instruct"),

		// Hugging Face
		HFToken:        os.Getenv("HUGGINGFACEHUB_API_TOKEN"),
		HFInferenceURL: getEnv("HF_INFERENCE_URL", "https://router.huggingface.co/hf-inference"),
		HFChatRepo:     getEnv("HF_CHAT_REPO", "HuggingFaceH4/zephyr-7b-beta"),
		HFTemperature:  getEnvFloat("HF_TEMPERATURE", 0.1),

		NewsAPIKey: os.Getenv("NEWS_API_KEY"),

		// Embeddings
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "huggingface"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"),
		OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434"),

		// Vector store
		VectorStore:   getEnv("VECTOR_STORE", "local"),
		PersistDir:    getEnv("PERSIST_DIR", "./Data/Docs/chroma"),
		Collection:    getEnv("COLLECTION", "financial_advice"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "advisor_db"),

		RawCSV:   getEnv("RAW_CSV", "./Data/Finance_data.csv"),
		WatchCSV: getEnvBool("WATCH_CSV", false),

		// Application settings
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// RAG Pipeline
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		TopK:         getEnvInt("TOP_K", 5),
	}
}

// RequireOpenRouterKey fails when the chat credential is missing.
func (c *Config) RequireOpenRouterKey() error {
	if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		return fmt.Errorf("environment variable OPENROUTER_API_KEY not found, please configure it")
	}
	return nil
}
