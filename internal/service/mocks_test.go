package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/pagination"
)

type mockInstanceRepo struct {
	mock.Mock
}

func (m *mockInstanceRepo) Upsert(ctx context.Context, k *domain.KnowledgeInstance) error {
	return m.Called(ctx, k).Error(0)
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id string) (*domain.KnowledgeInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeInstance), args.Error(1)
}

func (m *mockInstanceRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockInstanceRepo) ListBatch(ctx context.Context, afterID string, limit int) ([]*domain.KnowledgeInstance, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeInstance), args.Error(1)
}

func (m *mockInstanceRepo) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*InstancePageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InstancePageResult), args.Error(1)
}

func (m *mockInstanceRepo) UpdateDecayScore(ctx context.Context, id string, score float64, scoredAt time.Time) error {
	return m.Called(ctx, id, score, scoredAt).Error(0)
}

func (m *mockInstanceRepo) UpdateReinforcement(ctx context.Context, id string, lastReinforcedAt time.Time, decayScore float64) error {
	return m.Called(ctx, id, lastReinforcedAt, decayScore).Error(0)
}

func (m *mockInstanceRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) GetByUserID(ctx context.Context, userID string) (*domain.UserInterestProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserInterestProfile), args.Error(1)
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *domain.UserInterestProfile) error {
	return m.Called(ctx, p).Error(0)
}

type mockEngagementRepo struct {
	mock.Mock
}

func (m *mockEngagementRepo) Create(ctx context.Context, e *domain.Engagement) (string, error) {
	args := m.Called(ctx, e)
	return args.String(0), args.Error(1)
}

func (m *mockEngagementRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Engagement, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Engagement), args.Error(1)
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Upsert(k *domain.KnowledgeInstance) error {
	return m.Called(k).Error(0)
}

func (m *mockIndex) Remove(id string) error {
	return m.Called(id).Error(0)
}

func (m *mockIndex) Search(ctx context.Context, query []float32, filters domain.SearchFilters, topK int, alpha float64) ([]index.Hit, error) {
	args := m.Called(ctx, query, filters, topK, alpha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Hit), args.Error(1)
}

func (m *mockIndex) SetDecayScore(id string, score float64) {
	m.Called(id, score)
}

func (m *mockIndex) Rebuild(ctx context.Context, instances []*domain.KnowledgeInstance) (int, error) {
	args := m.Called(ctx, instances)
	return args.Int(0), args.Error(1)
}

func (m *mockIndex) Len() int {
	return m.Called().Int(0)
}

type mockReinforcer struct {
	mock.Mock
}

func (m *mockReinforcer) Reinforce(ctx context.Context, id string, weight float64) (float64, error) {
	args := m.Called(ctx, id, weight)
	return args.Get(0).(float64), args.Error(1)
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// fakeTxRunner invokes the callback with fixed repositories, no real
// transaction involved.
type fakeTxRunner struct {
	instances   *mockInstanceRepo
	profiles    *mockProfileRepo
	engagements *mockEngagementRepo
	beginErr    error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(f)
}

func (f *fakeTxRunner) Instances() InstanceRepositoryInterface     { return f.instances }
func (f *fakeTxRunner) Profiles() ProfileRepositoryInterface       { return f.profiles }
func (f *fakeTxRunner) Engagements() EngagementRepositoryInterface { return f.engagements }
