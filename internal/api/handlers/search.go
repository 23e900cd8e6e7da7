package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/substrate-kb/substrate/internal/api"
	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
)

type SearchService interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]index.Hit, error)
	SearchText(ctx context.Context, text string, filters domain.SearchFilters, topK int) ([]index.Hit, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Vector       []float32 `json:"vector,omitempty"`
	Text         string    `json:"text,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"`
	DIKWLevel    string    `json:"dikw_level,omitempty"`
	TopK         int       `json:"top_k,omitempty"`
}

type SearchHit struct {
	InstanceID    string   `json:"instance_id"`
	Similarity    float64  `json:"similarity"`
	DecayScore    float64  `json:"decay_score"`
	Score         float64  `json:"score"`
	DepartmentID  string   `json:"department_id"`
	CategoryID    string   `json:"category_id"`
	DIKWLevel     string   `json:"dikw_level"`
	SourceFileIDs []string `json:"source_file_ids"`
	CreatedAt     string   `json:"created_at"`
}

type SearchResponse struct {
	Hits []*SearchHit `json:"hits"`
}

func hitToResponse(h index.Hit) *SearchHit {
	return &SearchHit{
		InstanceID:    h.Entry.ID,
		Similarity:    h.Similarity,
		DecayScore:    h.Decay,
		Score:         h.Combined,
		DepartmentID:  h.Entry.DepartmentID,
		CategoryID:    h.Entry.CategoryID,
		DIKWLevel:     string(h.Entry.DIKWLevel),
		SourceFileIDs: h.Entry.SourceFileIDs,
		CreatedAt:     h.Entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Vector) == 0 && req.Text == "" {
		api.Error(w, http.StatusBadRequest, "either vector or text is required")
		return
	}

	filters := domain.SearchFilters{
		DepartmentID: req.DepartmentID,
		CategoryID:   req.CategoryID,
	}
	if req.DIKWLevel != "" {
		level := domain.DIKWLevel(req.DIKWLevel)
		filters.DIKWLevel = &level
	}

	var hits []index.Hit
	var err error
	if len(req.Vector) > 0 {
		hits, err = h.svc.Search(r.Context(), domain.SearchQuery{
			Vector:  req.Vector,
			Filters: filters,
			TopK:    req.TopK,
		})
	} else {
		hits, err = h.svc.SearchText(r.Context(), req.Text, filters, req.TopK)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchHit, len(hits))
	for i, hit := range hits {
		responses[i] = hitToResponse(hit)
	}

	api.Success(w, http.StatusOK, SearchResponse{Hits: responses})
}
