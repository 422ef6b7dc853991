package ollama

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

// ModelLister is the slice of Client the cache needs; tests substitute fakes.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ModelCache keeps the upstream model list for a bounded time so request
// validation does not hit Ollama on every submission. The cache is owned by
// whoever constructs it; there is no process-wide state.
type ModelCache struct {
	lister      ModelLister
	ttl         time.Duration
	fallbackTTL time.Duration
	fallback    []string
	log         *logger.Logger

	mu        sync.Mutex
	models    []string
	expiresAt time.Time

	now func() time.Time
}

type CacheInfo struct {
	Cached bool     `json:"cached"`
	Count  int      `json:"count"`
	Models []string `json:"models"`
}

func NewModelCache(lister ModelLister, ttl, fallbackTTL time.Duration, fallback []string, baseLog *logger.Logger) *ModelCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if fallbackTTL <= 0 {
		fallbackTTL = 2 * time.Minute
	}
	return &ModelCache{
		lister:      lister,
		ttl:         ttl,
		fallbackTTL: fallbackTTL,
		fallback:    fallback,
		log:         baseLog.With("component", "ModelCache"),
		now:         time.Now,
	}
}

// Models returns the cached model list, refreshing it when expired or when
// force is set. When Ollama is unreachable the configured fallback list is
// cached for a shorter window so recovery is picked up quickly.
func (c *ModelCache) Models(ctx context.Context, force bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.models != nil && c.now().Before(c.expiresAt) {
		return append([]string(nil), c.models...), nil
	}

	models, err := c.lister.ListModels(ctx)
	if err == nil && len(models) > 0 {
		c.models = models
		c.expiresAt = c.now().Add(c.ttl)
		c.log.Debug("Refreshed model cache", "count", len(models))
		return append([]string(nil), models...), nil
	}

	if len(c.fallback) > 0 {
		c.log.Warn("Ollama unreachable, caching fallback model list", "count", len(c.fallback), "error", err)
		c.models = append([]string(nil), c.fallback...)
		c.expiresAt = c.now().Add(c.fallbackTTL)
		return append([]string(nil), c.models...), nil
	}

	if err != nil {
		return nil, err
	}
	return []string{}, nil
}

// Refresh drops the cached list and fetches a fresh one.
func (c *ModelCache) Refresh(ctx context.Context) ([]string, error) {
	return c.Models(ctx, true)
}

func (c *ModelCache) Info() CacheInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	valid := c.models != nil && c.now().Before(c.expiresAt)
	info := CacheInfo{Cached: valid}
	if valid {
		info.Count = len(c.models)
		info.Models = append([]string(nil), c.models...)
	} else {
		info.Models = []string{}
	}
	return info
}

// ValidateModel checks a requested model name against the available set.
// Format is checked first (Ollama names are "model:size"); membership checks
// degrade gracefully when no list is available at all.
func (c *ModelCache) ValidateModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("model name must be a non-empty string")
	}
	if !strings.Contains(name, ":") {
		return fmt.Errorf("invalid model format %q, expected 'model:size' (e.g. 'llama3.1:8b')", name)
	}

	available, err := c.Models(ctx, false)
	if err != nil || len(available) == 0 {
		// Nothing to check against; accept any well-formed name rather than
		// refusing all submissions while Ollama is down.
		c.log.Warn("No model list available, skipping membership validation", "model", name)
		return nil
	}

	for _, m := range available {
		if m == name {
			return nil
		}
	}
	return fmt.Errorf("%s", suggestionMessage(name, available))
}

func suggestionMessage(requested string, available []string) string {
	base := strings.SplitN(requested, ":", 2)[0]
	var similar []string
	for _, m := range available {
		if strings.Contains(m, base) || strings.SplitN(m, ":", 2)[0] == base {
			similar = append(similar, m)
			if len(similar) == 3 {
				break
			}
		}
	}

	msg := fmt.Sprintf("model %q is not available in Ollama", requested)
	if len(similar) > 0 {
		return msg + ". Similar models: " + strings.Join(similar, ", ")
	}
	sample := available
	if len(sample) > 3 {
		msg += ". Available models include: " + strings.Join(sample[:3], ", ")
		return msg + fmt.Sprintf(" (and %d more)", len(available)-3)
	}
	return msg + ". Available models include: " + strings.Join(sample, ", ")
}
