package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", testLogger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("unexpected default base url: %s", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.MaxAttempts != 3 || cfg.Ollama.OverallBudget != 300*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Ollama)
	}
	if cfg.Matching.DefaultModel != "llama3.1:8b" {
		t.Fatalf("unexpected default model: %s", cfg.Matching.DefaultModel)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("ollama:\n  base_url: http://file-host:11434\n  max_attempts: 5\nmatching:\n  default_model: mistral:7b\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// Env wins over the file.
	t.Setenv("OLLAMA_API_URL", "http://env-host:11434")

	cfg, err := Load(path, testLogger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://env-host:11434" {
		t.Fatalf("env override not applied: %s", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.MaxAttempts != 5 {
		t.Fatalf("yaml value not applied: %d", cfg.Ollama.MaxAttempts)
	}
	if cfg.Matching.DefaultModel != "mistral:7b" {
		t.Fatalf("yaml model not applied: %s", cfg.Matching.DefaultModel)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml", testLogger(t)); err != nil {
		t.Fatalf("missing file must fall back to defaults: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "pw", Name: "ddrs", SSLMode: "disable"}
	want := "postgres://u:pw@db:5432/ddrs?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN: got %q want %q", got, want)
	}
}
