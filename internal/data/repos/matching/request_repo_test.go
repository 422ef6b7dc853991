package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ddrslabs/matching-backend/internal/data/repos/testutil"
	"github.com/ddrslabs/matching-backend/internal/domain"
	"github.com/ddrslabs/matching-backend/internal/pkg/dbctx"
)

func newRequest(status string) *domain.MatchingRequest {
	now := time.Now().UTC()
	return &domain.MatchingRequest{
		ID:           uuid.New(),
		Status:       status,
		DatasetIDs:   datatypes.JSON([]byte("[1,2]")),
		DatastoreIDs: datatypes.JSON([]byte("[10]")),
		ModelName:    "llama3.1:8b",
		SystemPrompt: "system",
		UserPrompt:   "user",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRequestRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewRequestRepo(db, testutil.Logger(t))

	req := newRequest(domain.StatusPending)
	if _, err := repo.Create(dbc, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.ID != req.ID || got.Status != domain.StatusPending {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID unknown: expected nil,nil got %v,%v", missing, err)
	}

	// pending -> processing succeeds once.
	ok, err := repo.TransitionStatus(dbc, req.ID, domain.StatusPending, domain.StatusProcessing, nil)
	if err != nil {
		t.Fatalf("TransitionStatus pending->processing: %v", err)
	}
	if !ok {
		t.Fatal("expected pending->processing to apply")
	}

	// The same transition a second time finds no pending row.
	ok, err = repo.TransitionStatus(dbc, req.ID, domain.StatusPending, domain.StatusProcessing, nil)
	if err != nil {
		t.Fatalf("TransitionStatus repeat: %v", err)
	}
	if ok {
		t.Fatal("repeat transition must not apply")
	}

	// processing -> completed with extra fields.
	seconds := 12.5
	confidence := 81.0
	ok, err = repo.TransitionStatus(dbc, req.ID, domain.StatusProcessing, domain.StatusCompleted, map[string]interface{}{
		"processing_time_seconds": seconds,
		"overall_confidence":      confidence,
	})
	if err != nil || !ok {
		t.Fatalf("TransitionStatus processing->completed: ok=%v err=%v", ok, err)
	}

	got, err = repo.GetByID(dbc, req.ID)
	if err != nil {
		t.Fatalf("GetByID after completion: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ProcessingTimeSeconds == nil || *got.ProcessingTimeSeconds != seconds {
		t.Fatalf("processing_time_seconds not persisted: %v", got.ProcessingTimeSeconds)
	}
	if got.OverallConfidence == nil || *got.OverallConfidence != confidence {
		t.Fatalf("overall_confidence not persisted: %v", got.OverallConfidence)
	}

	// Terminal states never move.
	ok, err = repo.TransitionStatus(dbc, req.ID, domain.StatusProcessing, domain.StatusFailed, nil)
	if err != nil {
		t.Fatalf("TransitionStatus on terminal: %v", err)
	}
	if ok {
		t.Fatal("terminal request must not transition again")
	}

	// List returns newest first.
	older := newRequest(domain.StatusPending)
	older.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	older.UpdatedAt = older.CreatedAt
	if _, err := repo.Create(dbc, older); err != nil {
		t.Fatalf("Create older: %v", err)
	}
	rows, err := repo.List(dbc, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != req.ID {
		t.Fatalf("List: expected newest first, got %d rows", len(rows))
	}
}

func TestRecommendationRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewRecommendationRepo(db, testutil.Logger(t))

	requestID := uuid.New()
	now := time.Now().UTC()
	batch := []*domain.Recommendation{
		{ID: uuid.New(), RequestID: requestID, DatasetID: 2, DatastoreID: 20, Confidence: 70, Reason: "second", Priority: 2, CreatedAt: now},
		{ID: uuid.New(), RequestID: requestID, DatasetID: 1, DatastoreID: 10, Confidence: 90, Reason: "first", Priority: 1, CreatedAt: now},
	}
	if _, err := repo.CreateBatch(dbc, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	rows, err := repo.ListByRequest(dbc, requestID)
	if err != nil {
		t.Fatalf("ListByRequest: %v", err)
	}
	if len(rows) != 2 || rows[0].Priority != 1 || rows[1].Priority != 2 {
		t.Fatalf("ListByRequest: expected priority order, got %+v", rows)
	}

	if rows, err := repo.ListByRequest(dbc, uuid.New()); err != nil || len(rows) != 0 {
		t.Fatalf("ListByRequest unknown: expected empty, got %d rows err=%v", len(rows), err)
	}
}

func TestExchangeRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewExchangeRepo(db, testutil.Logger(t))

	requestID := uuid.New()
	now := time.Now().UTC()
	rows := []*domain.ModelExchange{
		{ID: uuid.New(), RequestID: requestID, Attempt: 2, ModelName: "llama3.1:8b", Prompt: "p", RawResponse: "ok", Status: domain.ExchangeOK, LatencyMS: 40, CreatedAt: now.Add(2 * time.Second)},
		{ID: uuid.New(), RequestID: requestID, Attempt: 1, ModelName: "llama3.1:8b", Prompt: "p", Status: domain.ExchangeError, Error: "connection refused", LatencyMS: 5, CreatedAt: now},
	}
	if err := repo.Append(dbc, rows); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := repo.ListByRequest(dbc, requestID)
	if err != nil {
		t.Fatalf("ListByRequest: %v", err)
	}
	if len(got) != 2 || got[0].Attempt != 1 || got[1].Attempt != 2 {
		t.Fatalf("ListByRequest: expected attempt order, got %+v", got)
	}
	if got[0].Status != domain.ExchangeError || got[0].Error == "" {
		t.Fatalf("failed attempt not recorded: %+v", got[0])
	}
}
