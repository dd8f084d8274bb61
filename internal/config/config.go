// Package config resolves backend credentials and optional service
// settings from the environment, loading .env first so local runs can
// keep keys out of the shell.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string

	RunLedgerDSN string
	CacheDir     string
}

// Load reads .env (when present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		OpenAIKey:     getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL"),
		GeminiKey:     firstNonEmpty(getenv("GEMINI_API_KEY"), getenv("GOOGLE_API_KEY")),
		RunLedgerDSN:  getenv("CODEBRIEF_RUN_PG_DSN"),
		CacheDir:      getenv("CODEBRIEF_CACHE_DIR"),
	}
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
