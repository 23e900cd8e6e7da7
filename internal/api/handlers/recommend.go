package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/substrate-kb/substrate/internal/api"
	"github.com/substrate-kb/substrate/internal/domain"
)

type RecommendationService interface {
	Recommend(ctx context.Context, userID string, limit int) ([]*domain.Recommendation, error)
}

type RecommendHandler struct {
	svc RecommendationService
}

func NewRecommendHandler(svc RecommendationService) *RecommendHandler {
	return &RecommendHandler{svc: svc}
}

type RecommendationItem struct {
	InstanceID string  `json:"instance_id"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
}

type RecommendationsResponse struct {
	Items []*RecommendationItem `json:"items"`
}

func (h *RecommendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "userID is required")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	recs, err := h.svc.Recommend(r.Context(), userID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*RecommendationItem, len(recs))
	for i, rec := range recs {
		items[i] = &RecommendationItem{
			InstanceID: rec.InstanceID,
			Score:      rec.Score,
			Reason:     string(rec.Reason),
		}
	}

	api.Success(w, http.StatusOK, RecommendationsResponse{Items: items})
}
