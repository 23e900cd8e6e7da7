package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/substrate-kb/substrate/internal/api"
	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/service"
)

type InstanceService interface {
	Index(ctx context.Context, k *domain.KnowledgeInstance) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.KnowledgeInstance, error)
	List(ctx context.Context, cursor string, limit int) (*service.InstancePageResult, error)
}

type ReinforceService interface {
	Reinforce(ctx context.Context, id string, weight float64) (float64, error)
}

type InstanceHandler struct {
	svc        InstanceService
	reinforcer ReinforceService
}

func NewInstanceHandler(svc InstanceService, reinforcer ReinforceService) *InstanceHandler {
	return &InstanceHandler{svc: svc, reinforcer: reinforcer}
}

type IndexInstanceRequest struct {
	ID            string    `json:"id"`
	Embedding     []float32 `json:"embedding"`
	DepartmentID  string    `json:"department_id"`
	CategoryID    string    `json:"category_id"`
	DIKWLevel     string    `json:"dikw_level"`
	SourceFileIDs []string  `json:"source_file_ids"`
	CreatedAt     string    `json:"created_at,omitempty"`
}

type InstanceResponse struct {
	ID               string   `json:"id"`
	DepartmentID     string   `json:"department_id"`
	CategoryID       string   `json:"category_id"`
	DIKWLevel        string   `json:"dikw_level"`
	SourceFileIDs    []string `json:"source_file_ids"`
	DecayScore       float64  `json:"decay_score"`
	CreatedAt        string   `json:"created_at"`
	LastReinforcedAt string   `json:"last_reinforced_at"`
}

func instanceToResponse(k *domain.KnowledgeInstance) *InstanceResponse {
	return &InstanceResponse{
		ID:               k.ID,
		DepartmentID:     k.DepartmentID,
		CategoryID:       k.CategoryID,
		DIKWLevel:        string(k.DIKWLevel),
		SourceFileIDs:    k.SourceFileIDs,
		DecayScore:       k.DecayScore,
		CreatedAt:        k.CreatedAt.UTC().Format(time.RFC3339),
		LastReinforcedAt: k.LastReinforcedAt.UTC().Format(time.RFC3339),
	}
}

func (h *InstanceHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	if len(req.Embedding) == 0 {
		api.Error(w, http.StatusBadRequest, "embedding is required")
		return
	}

	createdAt := time.Time{}
	if req.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "created_at must be RFC3339")
			return
		}
		createdAt = parsed
	}

	k := domain.NewKnowledgeInstance(
		req.ID,
		req.DepartmentID,
		req.CategoryID,
		domain.DIKWLevel(req.DIKWLevel),
		req.Embedding,
		req.SourceFileIDs,
		createdAt,
	)
	if createdAt.IsZero() {
		k.CreatedAt = time.Time{}
		k.LastReinforcedAt = time.Time{}
	}

	if err := h.svc.Index(r.Context(), k); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, instanceToResponse(k))
}

func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	k, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, instanceToResponse(k))
}

func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Remove(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type InstanceListResponse struct {
	Items   []*InstanceResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.List(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*InstanceResponse, len(page.Items))
	for i, k := range page.Items {
		responses[i] = instanceToResponse(k)
	}

	api.Success(w, http.StatusOK, InstanceListResponse{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

type ReinforceRequest struct {
	Weight float64 `json:"weight"`
}

type ReinforceResponse struct {
	ID         string  `json:"id"`
	DecayScore float64 `json:"decay_score"`
}

func (h *InstanceHandler) Reinforce(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ReinforceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	score, err := h.reinforcer.Reinforce(r.Context(), id, req.Weight)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ReinforceResponse{ID: id, DecayScore: score})
}
