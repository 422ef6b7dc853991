package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ddrslabs/matching-backend/internal/platform/envutil"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds a single completion attempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// OverallBudget bounds one request's attempts in total, retries included.
	OverallBudget time.Duration `yaml:"overall_budget"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`

	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`

	ModelCacheTTL         time.Duration `yaml:"model_cache_ttl"`
	ModelCacheFallbackTTL time.Duration `yaml:"model_cache_fallback_ttl"`
	FallbackModels        []string      `yaml:"fallback_models"`
}

type MatchingConfig struct {
	DefaultModel       string `yaml:"default_model"`
	MaxPromptBytes     int    `yaml:"max_prompt_bytes"`
	MaxSystemPromptLen int    `yaml:"max_system_prompt_len"`
	MaxReasonLen       int    `yaml:"max_reason_len"`
	MaxConcurrentRuns  int64  `yaml:"max_concurrent_runs"`
	ValidateModelNames bool   `yaml:"validate_model_names"`
}

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Matching MatchingConfig `yaml:"matching"`
}

func Default() Config {
	return Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"http://localhost:3000"},
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "ddrs",
			SSLMode: "disable",
		},
		Ollama: OllamaConfig{
			BaseURL:               "http://localhost:11434",
			RequestTimeout:        90 * time.Second,
			OverallBudget:         300 * time.Second,
			ProbeTimeout:          5 * time.Second,
			MaxAttempts:           3,
			Temperature:           0.1,
			TopP:                  0.9,
			TopK:                  40,
			ModelCacheTTL:         10 * time.Minute,
			ModelCacheFallbackTTL: 2 * time.Minute,
		},
		Matching: MatchingConfig{
			DefaultModel:       "llama3.1:8b",
			MaxPromptBytes:     64 << 10,
			MaxSystemPromptLen: 2000,
			MaxReasonLen:       500,
			MaxConcurrentRuns:  8,
			ValidateModelNames: true,
		},
	}
}

// Load reads the optional YAML config file, then applies environment
// overrides on top. A missing file is not an error; env alone is enough.
func Load(path string, log *logger.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		} else if log != nil {
			log.Debug("Config file not found, using defaults + env", "path", path)
		}
	}

	cfg.Env = envutil.GetEnv("APP_ENV", cfg.Env, log)
	cfg.HTTP.Addr = envutil.GetEnv("HTTP_ADDR", cfg.HTTP.Addr, log)

	cfg.Postgres.Host = envutil.GetEnv("POSTGRES_HOST", cfg.Postgres.Host, log)
	cfg.Postgres.Port = envutil.GetEnv("POSTGRES_PORT", cfg.Postgres.Port, log)
	cfg.Postgres.User = envutil.GetEnv("POSTGRES_USER", cfg.Postgres.User, log)
	cfg.Postgres.Password = envutil.GetEnv("POSTGRES_PASSWORD", cfg.Postgres.Password, log)
	cfg.Postgres.Name = envutil.GetEnv("POSTGRES_NAME", cfg.Postgres.Name, log)

	cfg.Ollama.BaseURL = envutil.GetEnv("OLLAMA_API_URL", cfg.Ollama.BaseURL, log)
	cfg.Ollama.OverallBudget = envutil.GetEnvAsDuration("OLLAMA_REQUEST_TIMEOUT", cfg.Ollama.OverallBudget, log)
	cfg.Ollama.MaxAttempts = envutil.GetEnvAsInt("OLLAMA_MAX_ATTEMPTS", cfg.Ollama.MaxAttempts, log)

	cfg.Matching.DefaultModel = envutil.GetEnv("MATCHING_DEFAULT_MODEL", cfg.Matching.DefaultModel, log)
	cfg.Matching.ValidateModelNames = envutil.GetEnvAsBool("VALIDATE_OLLAMA_MODELS", cfg.Matching.ValidateModelNames, log)

	return cfg, nil
}
