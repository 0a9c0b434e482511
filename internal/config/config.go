package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Auth modes
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// DefaultSystemPrompt is used when neither the request nor the conversation carries one
const DefaultSystemPrompt = "You are LocalMind, a helpful and intelligent AI assistant."

// DefaultCORSOrigins mirrors the deployed frontend and the local Vite dev server
var DefaultCORSOrigins = []string{"https://proiect-tic.vercel.app", "http://localhost:5173"}

// Config holds all server configuration loaded from the environment
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	Database DatabaseConfig
	AI       AIConfig
	Chat     ChatConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Tracing  TracingConfig

	CORSOrigins []string
}

// DatabaseConfig selects the gorm driver and its DSN
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
}

// AIConfig describes the OpenAI-compatible inference server
type AIConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
}

// ChatConfig controls generation behaviour
type ChatConfig struct {
	DefaultSystemPrompt   string
	HistoryLimit          int
	GenerationTimeout     time.Duration
	PersistPartialReplies bool
	MaxActivePerUser      int
	RateLimitPerMinute    int
}

// AuthConfig selects how bearer tokens are verified
type AuthConfig struct {
	Mode              string
	FirebaseProjectID string
	JWTSecret         []byte
}

// RedisConfig is optional; an empty Host disables Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether Redis was configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// TracingConfig configures the OTLP exporter
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SamplingRate float64
}

// Load reads configuration from environment variables.
// REQUIRED environment variables:
// - LOCAL_AI_API_URL: inference server base URL or full /chat/completions URL
// - FIREBASE_PROJECT_ID when AUTH_MODE=firebase (default)
// - JWT_SECRET when AUTH_MODE=jwt
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "3000"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),
		CORSOrigins: DefaultCORSOrigins,
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	db, err := LoadDatabase()
	if err != nil {
		return nil, err
	}
	cfg.Database = db

	rawAIURL := os.Getenv("LOCAL_AI_API_URL")
	if rawAIURL == "" {
		return nil, fmt.Errorf("LOCAL_AI_API_URL environment variable not set")
	}
	temperature, err := getFloat("LOCAL_AI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}
	cfg.AI = AIConfig{
		BaseURL:     NormalizeAIBaseURL(rawAIURL),
		Model:       getEnvOrDefault("LOCAL_AI_MODEL", "local-model"),
		APIKey:      os.Getenv("LOCAL_AI_API_KEY"),
		Temperature: temperature,
	}

	if cfg.Chat, err = loadChat(); err != nil {
		return nil, err
	}

	if cfg.Auth, err = loadAuth(); err != nil {
		return nil, err
	}

	cfg.Redis = RedisConfig{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     getEnvOrDefault("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}

	sampling, err := getFloat("OTEL_SAMPLING_RATE", 1.0)
	if err != nil {
		return nil, err
	}
	cfg.Tracing = TracingConfig{
		Enabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		SamplingRate: sampling,
	}

	return cfg, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NormalizeAIBaseURL accepts either a base URL (http://host:1234/v1) or a full
// chat completions URL and returns the base URL the OpenAI client expects.
func NormalizeAIBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u + "/"
}

// LoadDatabase reads only the database settings, for tools that never talk to the model.
func LoadDatabase() (DatabaseConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres"))

	switch driver {
	case "sqlite":
		return DatabaseConfig{
			Driver: driver,
			DSN:    getEnvOrDefault("DB_PATH", "localmind.db"),
		}, nil
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			// Fallback to individual components
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				getEnvOrDefault("DB_HOST", "localhost"),
				getEnvOrDefault("DB_PORT", "5432"),
				getEnvOrDefault("DB_USER", "postgres"),
				getEnvOrDefault("DB_PASSWORD", ""),
				getEnvOrDefault("DB_NAME", "localmind"),
				getEnvOrDefault("DB_SSLMODE", "disable"),
			)
		}
		return DatabaseConfig{Driver: driver, DSN: dsn}, nil
	default:
		return DatabaseConfig{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", driver)
	}
}

func loadChat() (ChatConfig, error) {
	historyLimit, err := getInt("CHAT_HISTORY_LIMIT", 20)
	if err != nil {
		return ChatConfig{}, err
	}
	maxActive, err := getInt("MAX_ACTIVE_GENERATIONS_PER_USER", 2)
	if err != nil {
		return ChatConfig{}, err
	}
	rateLimit, err := getInt("CHAT_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return ChatConfig{}, err
	}
	timeout, err := getDuration("GENERATION_TIMEOUT", 5*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		DefaultSystemPrompt:   getEnvOrDefault("DEFAULT_SYSTEM_PROMPT", DefaultSystemPrompt),
		HistoryLimit:          historyLimit,
		GenerationTimeout:     timeout,
		PersistPartialReplies: os.Getenv("PERSIST_PARTIAL_REPLIES") == "true",
		MaxActivePerUser:      maxActive,
		RateLimitPerMinute:    rateLimit,
	}, nil
}

func loadAuth() (AuthConfig, error) {
	mode := strings.ToLower(getEnvOrDefault("AUTH_MODE", AuthModeFirebase))

	switch mode {
	case AuthModeFirebase:
		projectID := os.Getenv("FIREBASE_PROJECT_ID")
		if projectID == "" {
			return AuthConfig{}, fmt.Errorf("FIREBASE_PROJECT_ID environment variable not set")
		}
		return AuthConfig{Mode: mode, FirebaseProjectID: projectID}, nil
	case AuthModeJWT:
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return AuthConfig{}, fmt.Errorf("JWT_SECRET environment variable is required when AUTH_MODE=jwt")
		}
		return AuthConfig{Mode: mode, JWTSecret: []byte(secret)}, nil
	default:
		return AuthConfig{}, fmt.Errorf("AUTH_MODE must be firebase or jwt, got %q", mode)
	}
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 90s or 5m, got %q", key, raw)
	}
	return v, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
