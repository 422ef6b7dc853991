package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ddrslabs/matching-backend/internal/config"
	matchingrepo "github.com/ddrslabs/matching-backend/internal/data/repos/matching"
	registryrepo "github.com/ddrslabs/matching-backend/internal/data/repos/registry"
	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/matching"
	"github.com/ddrslabs/matching-backend/internal/ollama"
	"github.com/ddrslabs/matching-backend/internal/pkg/apperr"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
)

// Gateway is the slice of the Ollama client the lifecycle manager drives;
// tests substitute fakes.
type Gateway interface {
	Generate(ctx context.Context, model, systemPrompt, prompt string) (string, []ollama.Attempt, error)
}

// ModelValidator checks a requested model name before a request is created.
type ModelValidator interface {
	ValidateModel(ctx context.Context, name string) error
}

type SubmitInput struct {
	DatasetIDs   []int64
	DatastoreIDs []int64
	ModelName    string
	SystemPrompt string
	UserPrompt   string
}

type MatchingService interface {
	// Submit validates the input, creates a pending request and starts its
	// processing pipeline in the background. Validation failures return an
	// error without creating any record.
	Submit(ctx context.Context, in SubmitInput) (*domain.MatchingRequest, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.MatchingRequest, error)
	// GetRecommendations returns the ranked batch for a completed request and
	// apperr.ErrNotReady for anything not yet terminal-successful.
	GetRecommendations(ctx context.Context, id uuid.UUID) ([]*domain.Recommendation, error)
	GetExchanges(ctx context.Context, id uuid.UUID) ([]*domain.ModelExchange, error)
	ListRequests(ctx context.Context, limit int) ([]*domain.MatchingRequest, error)
	// Drain blocks until in-flight pipelines finish or the context expires.
	Drain(ctx context.Context) error
}

type matchingService struct {
	db  *gorm.DB
	log *logger.Logger

	requests        matchingrepo.RequestRepo
	recommendations matchingrepo.RecommendationRepo
	exchanges       matchingrepo.ExchangeRepo
	datasets        registryrepo.DatasetRepo
	datastores      registryrepo.DatastoreRepo

	gateway   Gateway
	validator ModelValidator
	cfg       config.MatchingConfig

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewMatchingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	requests matchingrepo.RequestRepo,
	recommendations matchingrepo.RecommendationRepo,
	exchanges matchingrepo.ExchangeRepo,
	datasets registryrepo.DatasetRepo,
	datastores registryrepo.DatastoreRepo,
	gateway Gateway,
	validator ModelValidator,
	cfg config.MatchingConfig,
) MatchingService {
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 8
	}
	return &matchingService{
		db:              db,
		log:             baseLog.With("service", "MatchingService"),
		requests:        requests,
		recommendations: recommendations,
		exchanges:       exchanges,
		datasets:        datasets,
		datastores:      datastores,
		gateway:         gateway,
		validator:       validator,
		cfg:             cfg,
		sem:             semaphore.NewWeighted(maxRuns),
	}
}

// ---------------- Submission ----------------

func (s *matchingService) Submit(ctx context.Context, in SubmitInput) (*domain.MatchingRequest, error) {
	datasetIDs := uniqueIDs(in.DatasetIDs)
	datastoreIDs := uniqueIDs(in.DatastoreIDs)
	if len(datasetIDs) == 0 {
		return nil, fmt.Errorf("%w: dataset_ids must be non-empty", apperr.ErrInvalidArgument)
	}
	if len(datastoreIDs) == 0 {
		return nil, fmt.Errorf("%w: datastore_ids must be non-empty", apperr.ErrInvalidArgument)
	}

	modelName := strings.TrimSpace(in.ModelName)
	if modelName == "" {
		modelName = s.cfg.DefaultModel
	}
	if !strings.Contains(modelName, ":") {
		return nil, fmt.Errorf("%w: invalid model format %q, expected 'model:size'", apperr.ErrInvalidArgument, modelName)
	}
	if s.cfg.ValidateModelNames && s.validator != nil {
		if err := s.validator.ValidateModel(ctx, modelName); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
		}
	}

	systemPrompt := strings.TrimSpace(in.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = matching.DefaultSystemPrompt
	}
	if max := s.cfg.MaxSystemPromptLen; max > 0 && len(systemPrompt) > max {
		return nil, fmt.Errorf("%w: system prompt exceeds %d characters", apperr.ErrInvalidArgument, max)
	}
	userPrompt := strings.TrimSpace(in.UserPrompt)
	if userPrompt == "" {
		userPrompt = matching.DefaultUserPrompt
	}

	// Resolve references up front; an unknown ID fails the submission before
	// any record exists.
	dbc := dbctx.Context{Ctx: ctx}
	datasets, err := s.datasets.GetByIDs(dbc, datasetIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve datasets: %w", err)
	}
	if missing := missingIDs(datasetIDs, datasetIDSet(datasets)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown dataset ids %v", apperr.ErrReferenceNotFound, missing)
	}
	datastores, err := s.datastores.GetByIDs(dbc, datastoreIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve datastores: %w", err)
	}
	if missing := missingIDs(datastoreIDs, datastoreIDSet(datastores)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown datastore ids %v", apperr.ErrReferenceNotFound, missing)
	}

	now := time.Now()
	req := &domain.MatchingRequest{
		ID:           uuid.New(),
		Status:       domain.StatusPending,
		DatasetIDs:   mustJSON(datasetIDs),
		DatastoreIDs: mustJSON(datastoreIDs),
		ModelName:    modelName,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.requests.Create(dbc, req); err != nil {
		return nil, fmt.Errorf("create matching request: %w", err)
	}

	s.log.Info("Matching request submitted",
		"request_id", req.ID, "model", modelName,
		"datasets", len(datasetIDs), "datastores", len(datastoreIDs))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The pipeline outlives the submitting HTTP request; it is bound to
		// the gateway's overall budget, not the caller's context.
		s.process(context.Background(), req.ID, datasets, datastores, datasetIDs, datastoreIDs)
	}()

	return req, nil
}

// ---------------- Processing pipeline ----------------

func (s *matchingService) process(
	ctx context.Context,
	requestID uuid.UUID,
	datasets []*domain.Dataset,
	datastores []*domain.Datastore,
	datasetIDs, datastoreIDs []int64,
) {
	log := s.log.With("request_id", requestID)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Error("Failed to acquire processing slot", "error", err)
		return
	}
	defer s.sem.Release(1)

	dbc := dbctx.Context{Ctx: ctx}
	req, err := s.requests.GetByID(dbc, requestID)
	if err != nil || req == nil {
		log.Error("Request disappeared before processing", "error", err)
		return
	}

	started, err := s.requests.TransitionStatus(dbc, requestID, domain.StatusPending, domain.StatusProcessing, nil)
	if err != nil {
		log.Error("Failed to enter processing", "error", err)
		return
	}
	if !started {
		// Someone else already moved it; processing is not re-entrant.
		log.Warn("Request not pending, skipping duplicate pipeline run")
		return
	}

	startedAt := time.Now()

	prompt := matching.BuildPrompt(matching.PromptInput{
		Datasets:   datasets,
		Datastores: datastores,
		UserPrompt: req.UserPrompt,
		MaxBytes:   s.cfg.MaxPromptBytes,
	})
	if prompt.Truncated {
		log.Warn("Prompt exceeded size budget, free-text fields truncated")
	}

	raw, attempts, genErr := s.gateway.Generate(ctx, req.ModelName, req.SystemPrompt, prompt.Text)
	s.appendExchanges(dbc, requestID, req.ModelName, prompt.Text, attempts, log)

	if genErr != nil {
		s.fail(dbc, requestID, startedAt, genErr, log)
		return
	}

	parsed, parseErr := matching.Parse(raw, matching.ParseOptions{
		DatasetIDs:   toSet(datasetIDs),
		DatastoreIDs: toSet(datastoreIDs),
		MaxReasonLen: s.cfg.MaxReasonLen,
	})
	if parseErr != nil {
		s.fail(dbc, requestID, startedAt, parseErr, log)
		return
	}
	for _, w := range parsed.Warnings {
		log.Warn("Response validation warning", "warning", w)
	}

	ranked := matching.Rank(parsed)
	if len(ranked.Recommendations) == 0 {
		s.fail(dbc, requestID, startedAt, &matching.ParseError{
			Kind: matching.KindEmptyResult,
			Msg:  "no recommendations survived validation",
		}, log)
		return
	}

	if err := s.complete(dbc, requestID, startedAt, ranked); err != nil {
		log.Error("Failed to persist completion", "error", err)
		s.fail(dbc, requestID, startedAt, fmt.Errorf("persist completion: %w", err), log)
		return
	}

	log.Info("Matching request completed",
		"recommendations", len(ranked.Recommendations),
		"overall_confidence", ranked.OverallConfidence,
		"processing_time", time.Since(startedAt).String())
}

// complete persists the terminal state and the recommendation batch in one
// transaction: a reader never sees a completed request without its batch.
func (s *matchingService) complete(dbc dbctx.Context, requestID uuid.UUID, startedAt time.Time, ranked matching.RankResult) error {
	seconds := time.Since(startedAt).Seconds()
	now := time.Now()

	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		ok, err := s.requests.TransitionStatus(txc, requestID, domain.StatusProcessing, domain.StatusCompleted, map[string]interface{}{
			"processing_time_seconds": seconds,
			"overall_confidence":      ranked.OverallConfidence,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("request %s no longer processing", requestID)
		}

		batch := make([]*domain.Recommendation, 0, len(ranked.Recommendations))
		for _, rec := range ranked.Recommendations {
			batch = append(batch, &domain.Recommendation{
				ID:          uuid.New(),
				RequestID:   requestID,
				DatasetID:   rec.DatasetID,
				DatastoreID: rec.DatastoreID,
				Confidence:  rec.Confidence,
				Reason:      rec.Reason,
				Priority:    rec.Priority,
				CreatedAt:   now,
			})
		}
		_, err = s.recommendations.CreateBatch(txc, batch)
		return err
	})
}

func (s *matchingService) fail(dbc dbctx.Context, requestID uuid.UUID, startedAt time.Time, cause error, log *logger.Logger) {
	kind := errorKind(cause)
	msg := kind + ": " + cause.Error()
	seconds := time.Since(startedAt).Seconds()

	ok, err := s.requests.TransitionStatus(dbc, requestID, domain.StatusProcessing, domain.StatusFailed, map[string]interface{}{
		"error_message":           msg,
		"processing_time_seconds": seconds,
	})
	if err != nil {
		log.Error("Failed to record failure", "error", err, "cause", cause)
		return
	}
	if !ok {
		log.Warn("Request already terminal, failure not recorded", "cause", cause)
		return
	}
	log.Warn("Matching request failed", "kind", kind, "cause", cause)
}

func (s *matchingService) appendExchanges(dbc dbctx.Context, requestID uuid.UUID, modelName, prompt string, attempts []ollama.Attempt, log *logger.Logger) {
	if len(attempts) == 0 {
		return
	}
	rows := make([]*domain.ModelExchange, 0, len(attempts))
	for _, a := range attempts {
		row := &domain.ModelExchange{
			ID:          uuid.New(),
			RequestID:   requestID,
			Attempt:     a.Number,
			ModelName:   modelName,
			Prompt:      prompt,
			RawResponse: a.Raw,
			Status:      domain.ExchangeOK,
			LatencyMS:   a.Latency.Milliseconds(),
			CreatedAt:   a.Started,
		}
		if a.Err != nil {
			row.Status = domain.ExchangeError
			row.Error = a.Err.Error()
		}
		rows = append(rows, row)
	}
	if err := s.exchanges.Append(dbc, rows); err != nil {
		// The audit trail must not take the pipeline down with it.
		log.Error("Failed to persist model exchanges", "error", err, "attempts", len(rows))
	}
}

// ---------------- Reads ----------------

func (s *matchingService) GetStatus(ctx context.Context, id uuid.UUID) (*domain.MatchingRequest, error) {
	req, err := s.requests.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: matching request %s", apperr.ErrNotFound, id)
	}
	return req, nil
}

func (s *matchingService) GetRecommendations(ctx context.Context, id uuid.UUID) ([]*domain.Recommendation, error) {
	req, err := s.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrNotReady, req.Status)
	}
	return s.recommendations.ListByRequest(dbctx.Context{Ctx: ctx}, id)
}

func (s *matchingService) GetExchanges(ctx context.Context, id uuid.UUID) ([]*domain.ModelExchange, error) {
	if _, err := s.GetStatus(ctx, id); err != nil {
		return nil, err
	}
	return s.exchanges.ListByRequest(dbctx.Context{Ctx: ctx}, id)
}

func (s *matchingService) ListRequests(ctx context.Context, limit int) ([]*domain.MatchingRequest, error) {
	return s.requests.List(dbctx.Context{Ctx: ctx}, limit)
}

func (s *matchingService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------- helpers ----------------

func errorKind(err error) string {
	switch {
	case errors.Is(err, ollama.ErrTimeout):
		return "timeout"
	case errors.Is(err, ollama.ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ollama.ErrModelNotFound):
		return "model_not_found"
	}
	var statusErr *ollama.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return "unexpected_status"
	}
	var parseErr *matching.ParseError
	if errors.As(err, &parseErr) {
		return string(parseErr.Kind)
	}
	return "internal"
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func datasetIDSet(rows []*domain.Dataset) map[int64]struct{} {
	set := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		set[r.ID] = struct{}{}
	}
	return set
}

func datastoreIDSet(rows []*domain.Datastore) map[int64]struct{} {
	set := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		set[r.ID] = struct{}{}
	}
	return set
}

func missingIDs(want []int64, have map[int64]struct{}) []int64 {
	var missing []int64
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func mustJSON(v interface{}) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
