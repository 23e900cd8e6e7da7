package service

import (
	"context"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/telemetry"
)

// QueryEmbedder turns free text into a query vector. Optional; when absent,
// callers must supply raw vectors.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchConfig tunes query-time behavior.
type SearchConfig struct {
	// Alpha weights similarity against decay in the combined score.
	Alpha float64
	// TopKCap is the largest topK a caller may request.
	TopKCap int
	// Dimension is the embedding dimension the index was built with.
	Dimension int
}

// SearchService validates queries and runs them against the index.
type SearchService struct {
	idx      SearchIndexInterface
	embedder QueryEmbedder
	cfg      SearchConfig
}

func NewSearchService(idx SearchIndexInterface, embedder QueryEmbedder, cfg SearchConfig) *SearchService {
	return &SearchService{idx: idx, embedder: embedder, cfg: cfg}
}

// Search runs a filtered top-K similarity search. A zero TopK falls back to
// the default page size.
func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) ([]index.Hit, error) {
	if q.TopK == 0 {
		q.TopK = domain.DefaultTopK
	}
	if q.TopK < 1 || q.TopK > s.cfg.TopKCap {
		return nil, domain.ErrInvalidTopK
	}
	if len(q.Vector) == 0 {
		return nil, domain.ErrEmptyQueryVector
	}
	if len(q.Vector) != s.cfg.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if q.Filters.DIKWLevel != nil && !domain.IsValidDIKWLevel(*q.Filters.DIKWLevel) {
		return nil, domain.ErrInvalidDIKWLevel
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		DepartmentID: q.Filters.DepartmentID,
		Operation:    "search",
	})
	defer span.End()

	return s.idx.Search(ctx, q.Vector, q.Filters, q.TopK, s.cfg.Alpha)
}

// SearchText embeds the query text and delegates to Search. Unavailable when
// no embedder is configured.
func (s *SearchService) SearchText(ctx context.Context, text string, filters domain.SearchFilters, topK int) ([]index.Hit, error) {
	if s.embedder == nil {
		return nil, domain.NewDomainError(domain.ErrCodeUnavailable, "text search is not configured")
	}
	if text == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "query text must not be empty")
	}

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "query embedding failed", err)
	}

	return s.Search(ctx, domain.SearchQuery{Vector: vec, Filters: filters, TopK: topK})
}
