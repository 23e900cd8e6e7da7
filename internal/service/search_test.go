package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
)

func testSearchConfig() SearchConfig {
	return SearchConfig{Alpha: 0.7, TopKCap: 100, Dimension: 2}
}

func TestSearch_Validation(t *testing.T) {
	svc := NewSearchService(&mockIndex{}, nil, testSearchConfig())

	t.Run("empty vector", func(t *testing.T) {
		_, err := svc.Search(context.Background(), domain.SearchQuery{TopK: 5})
		assert.ErrorIs(t, err, domain.ErrEmptyQueryVector)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := svc.Search(context.Background(), domain.SearchQuery{
			Vector: []float32{1, 0, 0},
			TopK:   5,
		})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("topK above cap", func(t *testing.T) {
		_, err := svc.Search(context.Background(), domain.SearchQuery{
			Vector: []float32{1, 0},
			TopK:   101,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTopK)
	})

	t.Run("negative topK", func(t *testing.T) {
		_, err := svc.Search(context.Background(), domain.SearchQuery{
			Vector: []float32{1, 0},
			TopK:   -1,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTopK)
	})

	t.Run("unknown dikw filter", func(t *testing.T) {
		bogus := domain.DIKWLevel("opinion")
		_, err := svc.Search(context.Background(), domain.SearchQuery{
			Vector:  []float32{1, 0},
			TopK:    5,
			Filters: domain.SearchFilters{DIKWLevel: &bogus},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidDIKWLevel)
	})
}

func TestSearch_DefaultsTopK(t *testing.T) {
	idx := &mockIndex{}
	idx.On("Search", mock.Anything, []float32{1, 0}, domain.SearchFilters{}, domain.DefaultTopK, 0.7).
		Return([]index.Hit{}, nil)
	svc := NewSearchService(idx, nil, testSearchConfig())

	_, err := svc.Search(context.Background(), domain.SearchQuery{Vector: []float32{1, 0}})
	require.NoError(t, err)
	idx.AssertExpectations(t)
}

func TestSearch_DelegatesToIndex(t *testing.T) {
	level := domain.DIKWKnowledge
	filters := domain.SearchFilters{DepartmentID: "eng", DIKWLevel: &level}
	want := []index.Hit{{Similarity: 0.9, Decay: 0.8, Combined: 0.9 * (0.7 + 0.3*0.8)}}

	idx := &mockIndex{}
	idx.On("Search", mock.Anything, []float32{0, 1}, filters, 7, 0.7).Return(want, nil)
	svc := NewSearchService(idx, nil, testSearchConfig())

	hits, err := svc.Search(context.Background(), domain.SearchQuery{
		Vector:  []float32{0, 1},
		Filters: filters,
		TopK:    7,
	})
	require.NoError(t, err)
	assert.Equal(t, want, hits)
}

func TestSearchText(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc := NewSearchService(&mockIndex{}, nil, testSearchConfig())
		_, err := svc.SearchText(context.Background(), "incident runbook", domain.SearchFilters{}, 5)
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeUnavailable, de.Code)
	})

	t.Run("empty text", func(t *testing.T) {
		svc := NewSearchService(&mockIndex{}, &mockEmbedder{}, testSearchConfig())
		_, err := svc.SearchText(context.Background(), "", domain.SearchFilters{}, 5)
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeInvalidArgument, de.Code)
	})

	t.Run("embedding failure", func(t *testing.T) {
		embedder := &mockEmbedder{}
		embedder.On("EmbedQuery", mock.Anything, "flaky").Return(nil, errors.New("rate limited"))
		svc := NewSearchService(&mockIndex{}, embedder, testSearchConfig())

		_, err := svc.SearchText(context.Background(), "flaky", domain.SearchFilters{}, 5)
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeUnavailable, de.Code)
	})

	t.Run("embeds then searches", func(t *testing.T) {
		embedder := &mockEmbedder{}
		embedder.On("EmbedQuery", mock.Anything, "incident runbook").Return([]float32{1, 0}, nil)
		idx := &mockIndex{}
		idx.On("Search", mock.Anything, []float32{1, 0}, domain.SearchFilters{}, 5, 0.7).
			Return([]index.Hit{}, nil)
		svc := NewSearchService(idx, embedder, testSearchConfig())

		_, err := svc.SearchText(context.Background(), "incident runbook", domain.SearchFilters{}, 5)
		require.NoError(t, err)
		idx.AssertExpectations(t)
	})
}
