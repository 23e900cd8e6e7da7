package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/pagination"
)

// InstanceRepositoryInterface is the durable embedding store contract.
type InstanceRepositoryInterface interface {
	Upsert(ctx context.Context, k *domain.KnowledgeInstance) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeInstance, error)
	Delete(ctx context.Context, id string) error
	ListBatch(ctx context.Context, afterID string, limit int) ([]*domain.KnowledgeInstance, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*InstancePageResult, error)
	UpdateDecayScore(ctx context.Context, id string, score float64, scoredAt time.Time) error
	UpdateReinforcement(ctx context.Context, id string, lastReinforcedAt time.Time, decayScore float64) error
	Count(ctx context.Context) (int64, error)
}

// SearchIndexInterface is the ANN index contract consumed by services.
type SearchIndexInterface interface {
	Upsert(k *domain.KnowledgeInstance) error
	Remove(id string) error
	Search(ctx context.Context, query []float32, filters domain.SearchFilters, topK int, alpha float64) ([]index.Hit, error)
	SetDecayScore(id string, score float64)
	Rebuild(ctx context.Context, instances []*domain.KnowledgeInstance) (int, error)
	Len() int
}

// InstancePageResult is one page of a cursor-paginated instance listing.
type InstancePageResult struct {
	Items      []*domain.KnowledgeInstance
	NextCursor string
	HasMore    bool
}

// InstanceService is the ingestion-facing boundary: it validates instances,
// persists them, and keeps the index write-through so an instance is
// searchable once Index returns.
type InstanceService struct {
	repo      InstanceRepositoryInterface
	idx       SearchIndexInterface
	dimension int
	batchSize int
}

func NewInstanceService(repo InstanceRepositoryInterface, idx SearchIndexInterface, dimension int) *InstanceService {
	return &InstanceService{
		repo:      repo,
		idx:       idx,
		dimension: dimension,
		batchSize: 500,
	}
}

// Index validates and indexes an instance (create or update).
func (s *InstanceService) Index(ctx context.Context, k *domain.KnowledgeInstance) error {
	if k != nil {
		if k.CreatedAt.IsZero() {
			k.CreatedAt = time.Now().UTC()
		}
		if k.LastReinforcedAt.IsZero() {
			k.LastReinforcedAt = k.CreatedAt
			k.DecayScore = 1.0
		}
	}
	if err := domain.ValidateInstance(k, s.dimension); err != nil {
		return err
	}

	if err := s.repo.Upsert(ctx, k); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return s.idx.Upsert(k)
}

// Remove deletes an instance from the store and the index. The ingestion
// pipeline calls this when all backing sources are gone.
func (s *InstanceService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrMissingInstanceID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == domain.ErrInstanceNotFound {
			return err
		}
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	if err := s.idx.Remove(id); err != nil && err != domain.ErrInstanceNotFound {
		return err
	}
	return nil
}

// Get returns a single instance by id.
func (s *InstanceService) Get(ctx context.Context, id string) (*domain.KnowledgeInstance, error) {
	if id == "" {
		return nil, domain.ErrMissingInstanceID
	}
	k, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == domain.ErrInstanceNotFound {
			return nil, err
		}
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}
	return k, nil
}

// List returns a page of instances, newest first.
func (s *InstanceService) List(ctx context.Context, cursor string, limit int) (*InstancePageResult, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidArgument, "invalid cursor", err)
	}
	page, err := s.repo.ListWithCursor(ctx, decoded, limit)
	if err != nil {
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}
	return page, nil
}

// RebuildIndex reloads every instance from the store into a fresh index
// generation. The index is a derived cache; this is always safe.
func (s *InstanceService) RebuildIndex(ctx context.Context) (int, error) {
	var all []*domain.KnowledgeInstance
	afterID := ""
	for {
		batch, err := s.repo.ListBatch(ctx, afterID, s.batchSize)
		if err != nil {
			return 0, domain.ErrStoreUnavailable.WithCause(err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		afterID = batch[len(batch)-1].ID
		if len(batch) < s.batchSize {
			break
		}
	}

	skipped, err := s.idx.Rebuild(ctx, all)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		log.Printf("index rebuild skipped %d invalid instances", skipped)
	}
	loaded := len(all) - skipped
	return loaded, nil
}

// String implements fmt.Stringer for log lines.
func (s *InstanceService) String() string {
	return fmt.Sprintf("InstanceService(dim=%d, indexed=%d)", s.dimension, s.idx.Len())
}
