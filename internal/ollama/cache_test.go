package ollama

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

type fakeLister struct {
	models []string
	err    error
	calls  int
}

func (f *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func testCache(t *testing.T, lister ModelLister, ttl, fallbackTTL time.Duration, fallback []string) *ModelCache {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewModelCache(lister, ttl, fallbackTTL, fallback, log)
}

func TestModelCacheTTL(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1:8b", "mistral:7b"}}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)

	clock := time.Now()
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	if _, err := cache.Models(ctx, false); err != nil {
		t.Fatalf("Models #1: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", lister.calls)
	}

	// Within TTL the cached list is served.
	clock = clock.Add(9 * time.Minute)
	if _, err := cache.Models(ctx, false); err != nil {
		t.Fatalf("Models #2: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("cache should have served, got %d upstream calls", lister.calls)
	}

	// Past TTL it refreshes.
	clock = clock.Add(2 * time.Minute)
	if _, err := cache.Models(ctx, false); err != nil {
		t.Fatalf("Models #3: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("expected refresh after TTL, got %d upstream calls", lister.calls)
	}
}

func TestModelCacheForceRefresh(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1:8b"}}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)

	ctx := context.Background()
	if _, err := cache.Models(ctx, false); err != nil {
		t.Fatalf("Models: %v", err)
	}
	if _, err := cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("force refresh should bypass cache, got %d calls", lister.calls)
	}
}

func TestModelCacheFallback(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, []string{"llama3.1:8b"})

	clock := time.Now()
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	models, err := cache.Models(ctx, false)
	if err != nil {
		t.Fatalf("Models with fallback: %v", err)
	}
	if len(models) != 1 || models[0] != "llama3.1:8b" {
		t.Fatalf("expected fallback list, got %v", models)
	}

	// The fallback entry expires on the shorter TTL so recovery is retried.
	clock = clock.Add(3 * time.Minute)
	lister.err = nil
	lister.models = []string{"llama3.1:8b", "mistral:7b"}
	models, err = cache.Models(ctx, false)
	if err != nil {
		t.Fatalf("Models after recovery: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected fresh list after recovery, got %v", models)
	}
}

func TestModelCacheNoFallbackPropagatesError(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)
	if _, err := cache.Models(context.Background(), false); err == nil {
		t.Fatal("expected error with no fallback configured")
	}
}

func TestModelCacheInfo(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1:8b"}}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)

	if info := cache.Info(); info.Cached {
		t.Fatal("cold cache should report uncached")
	}
	if _, err := cache.Models(context.Background(), false); err != nil {
		t.Fatalf("Models: %v", err)
	}
	info := cache.Info()
	if !info.Cached || info.Count != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestValidateModel(t *testing.T) {
	lister := &fakeLister{models: []string{"llama3.1:8b", "llama3.1:70b", "mistral:7b"}}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)
	ctx := context.Background()

	if err := cache.ValidateModel(ctx, ""); err == nil {
		t.Fatal("empty name must fail")
	}
	if err := cache.ValidateModel(ctx, "llama3.1"); err == nil {
		t.Fatal("name without size tag must fail")
	}
	if err := cache.ValidateModel(ctx, "llama3.1:8b"); err != nil {
		t.Fatalf("available model rejected: %v", err)
	}

	err := cache.ValidateModel(ctx, "llama3.1:405b")
	if err == nil {
		t.Fatal("unavailable model must fail")
	}
	if !strings.Contains(err.Error(), "llama3.1:8b") {
		t.Fatalf("expected similar-model suggestion, got %q", err.Error())
	}
}

func TestValidateModelSkipsWhenListUnavailable(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	cache := testCache(t, lister, 10*time.Minute, 2*time.Minute, nil)
	// Well-formed names pass when there is nothing to check against.
	if err := cache.ValidateModel(context.Background(), "llama3.1:8b"); err != nil {
		t.Fatalf("expected graceful skip, got %v", err)
	}
}
