package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ddrslabs/matching-backend/internal/http/response"
	"github.com/ddrslabs/matching-backend/internal/ollama"
	"github.com/ddrslabs/matching-backend/internal/pkg/apperr"
	"github.com/ddrslabs/matching-backend/internal/services"
)

type MatchingHandler struct {
	svc    services.MatchingService
	cache  *ollama.ModelCache
	client *ollama.Client
}

func NewMatchingHandler(svc services.MatchingService, cache *ollama.ModelCache, client *ollama.Client) *MatchingHandler {
	return &MatchingHandler{svc: svc, cache: cache, client: client}
}

type submitRequestBody struct {
	DatasetIDs   []int64 `json:"dataset_ids" binding:"required"`
	DatastoreIDs []int64 `json:"datastore_ids" binding:"required"`
	ModelName    string  `json:"model_name"`
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
}

// POST /api/matching/requests
func (h *MatchingHandler) Submit(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	req, err := h.svc.Submit(c.Request.Context(), services.SubmitInput{
		DatasetIDs:   body.DatasetIDs,
		DatastoreIDs: body.DatastoreIDs,
		ModelName:    body.ModelName,
		SystemPrompt: body.SystemPrompt,
		UserPrompt:   body.UserPrompt,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrReferenceNotFound):
			response.RespondError(c, http.StatusNotFound, "reference_not_found", err)
		case errors.Is(err, apperr.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		}
		return
	}

	response.RespondAccepted(c, gin.H{"request": req})
}

// GET /api/matching/requests/:id
func (h *MatchingHandler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_id", err)
		return
	}
	req, err := h.svc.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "request_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"request": req})
}

// GET /api/matching/requests
func (h *MatchingHandler) ListRequests(c *gin.Context) {
	reqs, err := h.svc.ListRequests(c.Request.Context(), 50)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_requests_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"requests": reqs})
}

// GET /api/matching/requests/:id/recommendations
func (h *MatchingHandler) GetRecommendations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_id", err)
		return
	}
	recs, err := h.svc.GetRecommendations(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			response.RespondError(c, http.StatusNotFound, "request_not_found", err)
		case errors.Is(err, apperr.ErrNotReady):
			response.RespondError(c, http.StatusConflict, "not_ready", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "get_recommendations_failed", err)
		}
		return
	}
	response.RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/matching/requests/:id/exchanges
func (h *MatchingHandler) GetExchanges(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_id", err)
		return
	}
	exchanges, err := h.svc.GetExchanges(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "request_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_exchanges_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"exchanges": exchanges})
}

// GET /api/matching/models?force=1
func (h *MatchingHandler) ListModels(c *gin.Context) {
	force := false
	switch strings.TrimSpace(c.Query("force")) {
	case "1", "true", "yes":
		force = true
	}
	models, err := h.cache.Models(c.Request.Context(), force)
	if err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "backend_unavailable", err)
		return
	}
	response.RespondOK(c, gin.H{"models": models, "cache": h.cache.Info()})
}

// GET /api/matching/status
func (h *MatchingHandler) SystemStatus(c *gin.Context) {
	health := h.client.HealthCheck(c.Request.Context())
	response.RespondOK(c, gin.H{
		"ollama": health,
		"cache":  h.cache.Info(),
		"ready":  health.Healthy,
	})
}
