package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, env := range []string{"GEMINI_API_KEY", "GROQ_API_KEY", "PORT", "SERVER_ADDRESS", "DATABASE_URL", "DATABASE_DRIVER", "UPLOAD_TTL_MINUTES"} {
		t.Setenv(env, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "invoices.db", cfg.Database.DSN)
	assert.Equal(t, DefaultGeminiModel, cfg.Provider(ProviderGemini).Model)
	assert.Equal(t, DefaultGroqModel, cfg.Provider(ProviderGroq).Model)
	assert.Equal(t, DefaultGroqBaseURL, cfg.Provider(ProviderGroq).BaseURL)
	assert.Empty(t, cfg.Provider(ProviderGemini).APIKey)
	assert.Equal(t, 24*time.Hour, cfg.UploadTTL())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8088")
	t.Setenv("GEMINI_API_KEY", " gem-key ")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Addr())
	assert.Equal(t, "gem-key", cfg.Provider(ProviderGemini).APIKey)
	assert.Equal(t, "groq-key", cfg.Provider(ProviderGroq).APIKey)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"basic_config": {"server_address": "127.0.0.1:9000", "upload_ttl_minutes": 5},
		"database": {"driver": "sqlite", "dsn": "data/invoices.db"},
		"providers": {"groq": {"model": "llama-3.1-8b-instant"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("GROQ_MODEL", "")
	t.Setenv("SERVER_ADDRESS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("UPLOAD_TTL_MINUTES", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "data/invoices.db"), cfg.Database.DSN)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Provider(ProviderGroq).Model)
	assert.Equal(t, "from-env", cfg.Provider(ProviderGroq).APIKey)
	assert.Equal(t, 5*time.Minute, cfg.UploadTTL())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := Load("")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
