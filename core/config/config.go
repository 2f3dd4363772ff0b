package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/homelabrg/codelens/core/db"
)

type Config struct {
	Env     string
	Port    string
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Redis   RedisConfig
	OTel    OTelConfig
	DB      db.Config
}

// StorageConfig holds the on-disk layout: project file trees, clone
// workspace, JSON record stores and the per-job analysis result archive.
type StorageConfig struct {
	FilesBasePath       string
	CloneBasePath       string
	DBPath              string
	AnalysisResultsPath string
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// RedisConfig configures the LLM response cache. Optional; with no URL the
// analyzer runs uncached.
type RedisConfig struct {
	URL string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables. In development it
// first loads a .env file if present.
func Load() (Config, error) {
	if getEnv("CODELENS_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("CODELENS_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		Storage: StorageConfig{
			FilesBasePath:       getEnv("FILES_BASE_PATH", "/tmp/codelens/files"),
			CloneBasePath:       getEnv("CLONE_BASE_PATH", "/tmp/codelens/repos"),
			DBPath:              getEnv("DB_PATH", "/tmp/codelens/db"),
			AnalysisResultsPath: getEnv("ANALYSIS_RESULTS_PATH", "/tmp/codelens/analysis"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.0),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "codelens"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
