package service

import (
	"context"
	"log"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/telemetry"
)

// RecommendationConfig tunes candidate retrieval and post-filtering.
type RecommendationConfig struct {
	// Alpha weights similarity against decay when scoring candidates.
	Alpha float64
	// CandidateMultiplier oversizes the candidate pool relative to the
	// requested limit, leaving headroom for dedup and diversity drops.
	CandidateMultiplier int
	// TopKCap bounds the candidate pool size.
	TopKCap int
	// FreshnessFloor drops candidates whose decay score fell below it.
	FreshnessFloor float64
}

// RecommendationEngine produces personalized suggestions from a user's
// interest profile.
type RecommendationEngine struct {
	profiles ProfileRepositoryInterface
	idx      SearchIndexInterface
	cfg      RecommendationConfig
}

func NewRecommendationEngine(profiles ProfileRepositoryInterface, idx SearchIndexInterface, cfg RecommendationConfig) *RecommendationEngine {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 4
	}
	return &RecommendationEngine{profiles: profiles, idx: idx, cfg: cfg}
}

// Recommend returns up to limit suggestions for a user, most relevant first.
// A user with no engagement history gets an empty list rather than arbitrary
// results.
func (e *RecommendationEngine) Recommend(ctx context.Context, userID string, limit int) ([]*domain.Recommendation, error) {
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	ctx, span := telemetry.StartSpan(ctx, "RecommendationEngine.Recommend", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "recommend",
	})
	defer span.End()

	profile, err := e.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if err == domain.ErrProfileNotFound {
			return nil, err
		}
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}
	if !profile.HasHistory() {
		return []*domain.Recommendation{}, nil
	}

	candidateK := limit * e.cfg.CandidateMultiplier
	if candidateK < 20 {
		candidateK = 20
	}
	if candidateK > e.cfg.TopKCap {
		candidateK = e.cfg.TopKCap
	}

	hits, err := e.idx.Search(ctx, profile.InterestVector, domain.SearchFilters{}, candidateK, e.cfg.Alpha)
	if err != nil {
		return nil, err
	}

	return e.assemble(hits, limit), nil
}

// assemble applies the freshness floor, source-overlap dedup, and per-category
// diversity cap, in that order, preserving score order.
func (e *RecommendationEngine) assemble(hits []index.Hit, limit int) []*domain.Recommendation {
	categoryCap := (limit + 2) / 3
	seenSources := make(map[string]struct{})
	perCategory := make(map[string]int)
	recs := make([]*domain.Recommendation, 0, limit)

	for _, h := range hits {
		if len(recs) == limit {
			break
		}
		if h.Decay < e.cfg.FreshnessFloor {
			continue
		}

		overlap := false
		for _, src := range h.Entry.SourceFileIDs {
			if _, ok := seenSources[src]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}

		if perCategory[h.Entry.CategoryID] >= categoryCap {
			log.Printf("recommend: diversity cap skipped %s (category %s)", h.Entry.ID, h.Entry.CategoryID)
			continue
		}

		for _, src := range h.Entry.SourceFileIDs {
			seenSources[src] = struct{}{}
		}
		perCategory[h.Entry.CategoryID]++

		reason := domain.ReasonFreshness
		if h.Similarity >= h.Decay {
			reason = domain.ReasonInterest
		}
		recs = append(recs, &domain.Recommendation{
			InstanceID: h.Entry.ID,
			Score:      h.Combined,
			Reason:     reason,
		})
	}

	return recs
}
