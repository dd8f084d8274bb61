package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "  sk-test  ")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("CODEBRIEF_RUN_PG_DSN", "postgres://localhost/codebrief")
	t.Setenv("CODEBRIEF_CACHE_DIR", "/tmp/codebrief-cache")

	cfg := Load()
	require.Equal(t, "sk-test", cfg.OpenAIKey)
	require.Equal(t, "http://localhost:8080/v1", cfg.OpenAIBaseURL)
	require.Equal(t, "g-key", cfg.GeminiKey)
	require.Equal(t, "postgres://localhost/codebrief", cfg.RunLedgerDSN)
	require.Equal(t, "/tmp/codebrief-cache", cfg.CacheDir)
}

func TestGeminiKeyPrefersPrimaryVariable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("GOOGLE_API_KEY", "fallback")

	cfg := Load()
	require.Equal(t, "primary", cfg.GeminiKey)
}
