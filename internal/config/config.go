package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Webhook  WebhookConfig
	Worker   WorkerConfig
	LogLevel slog.Level
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// OCRConfig selects the recognizer backend and tunes preprocessing.
type OCRConfig struct {
	Backend         string // "cli", "tesseract" or "vision"
	TesseractPath   string
	Language        string
	PageSegMode     int
	EngineMode      int
	Scale           float64
	ThresholdBlock  int
	ThresholdOffset float64
	CacheTTL        time.Duration
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type WebhookConfig struct {
	Secret string
}

type WorkerConfig struct {
	Concurrency int
}

var ocrBackends = []string{"cli", "tesseract", "vision"}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	psm, err := getEnvInt("OCR_PSM", 6)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_PSM: %w", err)
	}

	oem, err := getEnvInt("OCR_OEM", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_OEM: %w", err)
	}

	scale, err := getEnvFloat("OCR_SCALE", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_SCALE: %w", err)
	}

	block, err := getEnvInt("OCR_THRESHOLD_BLOCK", 11)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_THRESHOLD_BLOCK: %w", err)
	}

	offset, err := getEnvFloat("OCR_THRESHOLD_OFFSET", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_THRESHOLD_OFFSET: %w", err)
	}

	cacheTTL, err := getEnvDuration("OCR_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_CACHE_TTL: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		OCR: OCRConfig{
			Backend:         strings.ToLower(getEnv("OCR_BACKEND", "cli")),
			TesseractPath:   getEnv("OCR_TESSERACT_PATH", "tesseract"),
			Language:        getEnv("OCR_LANGUAGE", "eng"),
			PageSegMode:     psm,
			EngineMode:      oem,
			Scale:           scale,
			ThresholdBlock:  block,
			ThresholdOffset: offset,
			CacheTTL:        cacheTTL,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("VISION_PROVIDER", "openai"),
			DefaultModel:     getEnv("VISION_MODEL", "gpt-4o"),
			FallbackProvider: getEnv("VISION_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "lab-reports"),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Worker: WorkerConfig{
			Concurrency: concurrency,
		},
		LogLevel: level,
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AsyncEnabled reports whether uploads can be stored for the worker.
func (c *Config) AsyncEnabled() bool {
	return c.Storage.SupabaseURL != "" && c.Storage.SupabaseKey != ""
}

func (c *Config) Validate() error {
	var problems []string

	if !contains(ocrBackends, c.OCR.Backend) {
		problems = append(problems, fmt.Sprintf("OCR_BACKEND must be one of %s", strings.Join(ocrBackends, ", ")))
	}
	if c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13 {
		problems = append(problems, "OCR_PSM must be between 0 and 13")
	}
	if c.OCR.EngineMode < 0 || c.OCR.EngineMode > 3 {
		problems = append(problems, "OCR_OEM must be between 0 and 3")
	}
	if c.OCR.ThresholdBlock < 3 || c.OCR.ThresholdBlock%2 == 0 {
		problems = append(problems, "OCR_THRESHOLD_BLOCK must be an odd number >= 3")
	}
	if c.OCR.Backend == "vision" {
		switch c.LLM.DefaultProvider {
		case "openai":
			if c.LLM.OpenAIKey == "" {
				problems = append(problems, "OPENAI_API_KEY is required for the vision backend")
			}
		case "anthropic":
			if c.LLM.AnthropicKey == "" {
				problems = append(problems, "ANTHROPIC_API_KEY is required for the vision backend")
			}
		case "ollama":
			if c.LLM.OllamaURL == "" {
				problems = append(problems, "OLLAMA_URL is required for the vision backend")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown VISION_PROVIDER %q", c.LLM.DefaultProvider))
		}
	}
	if c.Worker.Concurrency < 1 {
		problems = append(problems, "WORKER_CONCURRENCY must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
