package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	// Mindful backend (completion + identity collaborators)
	APIBaseURL string

	// AI provider
	AIProvider    string
	OllamaBaseURL string
	OllamaModel   string

	// Durable storage
	StorageBackend string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	ChatContextWindowSize int
}

func Load() Config {
	apiBase := os.Getenv("MINDFUL_API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:4000"
	}

	aiProvider := os.Getenv("AI_PROVIDER")
	if aiProvider == "" {
		aiProvider = "mindful"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = defaultSQLitePath()
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	windowSize := 20
	if v := os.Getenv("CHAT_CONTEXT_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			windowSize = n
		}
	}

	return Config{
		APIBaseURL: apiBase,

		AIProvider:    aiProvider,
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,

		StorageBackend: backend,
		SQLitePath:     sqlitePath,
		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,

		ChatContextWindowSize: windowSize,
	}
}

func defaultSQLitePath() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "mindful", "mindful.db")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "mindful", "mindful.db")
	}
	return filepath.Join(os.TempDir(), "mindful", "mindful.db")
}
