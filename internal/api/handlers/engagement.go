package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/substrate-kb/substrate/internal/api"
	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/service"
)

type EngagementService interface {
	RecordEngagement(ctx context.Context, input service.EngagementInput) (*domain.Engagement, error)
}

type EngagementHandler struct {
	svc EngagementService
}

func NewEngagementHandler(svc EngagementService) *EngagementHandler {
	return &EngagementHandler{svc: svc}
}

type RecordEngagementRequest struct {
	UserID     string  `json:"user_id"`
	InstanceID string  `json:"instance_id"`
	Signal     string  `json:"signal"`
	Weight     float64 `json:"weight"`
}

type EngagementResponse struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	InstanceID string  `json:"instance_id"`
	Signal     string  `json:"signal"`
	Weight     float64 `json:"weight"`
	CreatedAt  string  `json:"created_at"`
}

func (h *EngagementHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordEngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.svc.RecordEngagement(r.Context(), service.EngagementInput{
		UserID:     req.UserID,
		InstanceID: req.InstanceID,
		Signal:     domain.EngagementSignal(req.Signal),
		Weight:     req.Weight,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, EngagementResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		InstanceID: e.InstanceID,
		Signal:     string(e.Signal),
		Weight:     e.Weight,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
	})
}
