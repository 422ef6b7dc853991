package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ddrslabs/matching-backend/internal/config"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

// Client talks to an Ollama-compatible inference backend over HTTP. It holds
// no per-request state; the underlying transport pools connections across
// concurrent matching runs.
type Client struct {
	baseURL string

	requestTimeout time.Duration
	overallBudget  time.Duration
	probeTimeout   time.Duration
	maxAttempts    int

	temperature float64
	topP        float64
	topK        int

	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.OllamaConfig, baseLog *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ollama: base_url required")
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 90 * time.Second
	}
	overallBudget := cfg.OverallBudget
	if overallBudget <= 0 {
		overallBudget = 300 * time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Client{
		baseURL:        baseURL,
		requestTimeout: requestTimeout,
		overallBudget:  overallBudget,
		probeTimeout:   probeTimeout,
		maxAttempts:    maxAttempts,
		temperature:    cfg.Temperature,
		topP:           cfg.TopP,
		topK:           cfg.TopK,
		httpClient:     &http.Client{Transport: tr},
		log:            baseLog.With("client", "OllamaClient"),
	}, nil
}

// NewClientWithHTTPClient is intended for tests; it avoids network access by
// using a custom RoundTripper.
func NewClientWithHTTPClient(cfg config.OllamaConfig, baseLog *logger.Logger, httpClient *http.Client) (*Client, error) {
	c, err := NewClient(cfg, baseLog)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

// ---------------- Model discovery ----------------

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx2, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode /api/tags response: %w", err)
	}
	out := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if strings.TrimSpace(m.Name) != "" {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

// ---------------- Health ----------------

type Health struct {
	Healthy    bool          `json:"healthy"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"-"`
	LatencyMS  int64         `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
}

func (c *Client) HealthCheck(ctx context.Context) Health {
	ctx2, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx2, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Health{Healthy: false, Latency: latency, LatencyMS: latency.Milliseconds(), Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return Health{
		Healthy:    resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		LatencyMS:  latency.Milliseconds(),
	}
}

// ---------------- Completion ----------------

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Attempt records one completion attempt against the backend, successful or
// not. Callers persist these as the raw-exchange audit trail.
type Attempt struct {
	Number  int
	Raw     string
	Err     error
	Latency time.Duration
	Started time.Time
}

// Generate runs a non-streaming completion with the retry policy: up to
// maxAttempts attempts, retrying only transient failures, exponential backoff
// from 1s, the whole call bounded by the overall budget. The same prompt is
// sent on every attempt.
func (c *Client) Generate(ctx context.Context, model, systemPrompt, prompt string) (string, []Attempt, error) {
	deadline := time.Now().Add(c.overallBudget)
	attempts := make([]Attempt, 0, c.maxAttempts)

	var lastErr error
	for n := 1; n <= c.maxAttempts; n++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			lastErr = fmt.Errorf("%w: overall budget %s exhausted", ErrTimeout, c.overallBudget)
			break
		}

		attemptTimeout := c.requestTimeout
		if attemptTimeout > remaining {
			attemptTimeout = remaining
		}

		start := time.Now()
		raw, err := c.generateOnce(ctx, model, systemPrompt, prompt, attemptTimeout)
		attempt := Attempt{
			Number:  n,
			Raw:     raw,
			Err:     err,
			Latency: time.Since(start),
			Started: start,
		}
		attempts = append(attempts, attempt)

		if err == nil {
			return raw, attempts, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		if n == c.maxAttempts {
			break
		}

		backoff := backoffDelay(n)
		if rem := time.Until(deadline); backoff > rem {
			backoff = rem
		}
		c.log.Warn("Ollama attempt failed, backing off",
			"model", model, "attempt", n, "backoff", backoff.String(), "error", err)
		select {
		case <-ctx.Done():
			return "", attempts, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("ollama generate failed")
	}
	return "", attempts, lastErr
}

func (c *Client) generateOnce(ctx context.Context, model, systemPrompt, prompt string, timeout time.Duration) (string, error) {
	body := generateRequest{
		Model:  model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
			TopK:        c.topK,
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}

	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, "POST", c.baseURL+"/api/generate", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: model %q: %s", ErrModelNotFound, model, strings.TrimSpace(string(raw)))
		}
		return "", &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode /api/generate response: %w", err)
	}
	if strings.TrimSpace(out.Error) != "" {
		if strings.Contains(strings.ToLower(out.Error), "not found") {
			return "", fmt.Errorf("%w: model %q: %s", ErrModelNotFound, model, out.Error)
		}
		return "", &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: out.Error}
	}
	return out.Response, nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	// url.Error wraps the context error on client-side cancellation.
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// backoffDelay doubles from 1s per completed attempt: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
