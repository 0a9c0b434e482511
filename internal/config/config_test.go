package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("LOCAL_AI_API_URL", "http://localhost:1234/v1/chat/completions")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "test_jwt_secret_key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "dbname=localmind")
	assert.Equal(t, "http://localhost:1234/v1/", cfg.AI.BaseURL)
	assert.Equal(t, "local-model", cfg.AI.Model)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.DefaultSystemPrompt)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.Chat.GenerationTimeout)
	assert.False(t, cfg.Chat.PersistPartialReplies)
	assert.Equal(t, DefaultCORSOrigins, cfg.CORSOrigins)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, AuthModeJWT, cfg.Auth.Mode)
	assert.Equal(t, []byte("test_jwt_secret_key"), cfg.Auth.JWTSecret)
}

func TestLoadMissingAIURL(t *testing.T) {
	t.Setenv("LOCAL_AI_API_URL", "")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "x")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCAL_AI_API_URL")
}

func TestLoadFirebaseRequiresProject(t *testing.T) {
	t.Setenv("LOCAL_AI_API_URL", "http://localhost:1234/v1")
	t.Setenv("AUTH_MODE", "firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_PROJECT_ID")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/chat.db")
	t.Setenv("CHAT_HISTORY_LIMIT", "6")
	t.Setenv("GENERATION_TIMEOUT", "90s")
	t.Setenv("PERSIST_PARTIAL_REPLIES", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DatabaseConfig{Driver: "sqlite", DSN: "/tmp/chat.db"}, cfg.Database)
	assert.Equal(t, 6, cfg.Chat.HistoryLimit)
	assert.Equal(t, 90*time.Second, cfg.Chat.GenerationTimeout)
	assert.True(t, cfg.Chat.PersistPartialReplies)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "6379", cfg.Redis.Port)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"CHAT_HISTORY_LIMIT":   "-1",
		"GENERATION_TIMEOUT":   "soon",
		"LOCAL_AI_TEMPERATURE": "warm",
		"DB_DRIVER":            "mysql",
		"AUTH_MODE":            "basic",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNormalizeAIBaseURL(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"http://localhost:1234/v1", "http://localhost:1234/v1/"},
		{"http://localhost:1234/v1/", "http://localhost:1234/v1/"},
		{"http://localhost:1234/v1/chat/completions", "http://localhost:1234/v1/"},
		{" http://gpu-box:8080/v1/chat/completions/ ", "http://gpu-box:8080/v1/"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeAIBaseURL(tc.input))
		})
	}
}
