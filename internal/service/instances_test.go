package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/pagination"
)

func validInstance(id string) *domain.KnowledgeInstance {
	return domain.NewKnowledgeInstance(
		id,
		"eng",
		"runbooks",
		domain.DIKWKnowledge,
		[]float32{1, 0},
		[]string{"file-1"},
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	)
}

func TestInstanceServiceIndex(t *testing.T) {
	t.Run("persists then indexes", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		k := validInstance("inst-1")
		repo.On("Upsert", mock.Anything, k).Return(nil)
		idx.On("Upsert", k).Return(nil)

		require.NoError(t, svc.Index(context.Background(), k))
		repo.AssertExpectations(t)
		idx.AssertExpectations(t)
	})

	t.Run("fills reinforcement defaults", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		k := validInstance("inst-1")
		k.LastReinforcedAt = time.Time{}
		k.DecayScore = 0
		repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		idx.On("Upsert", mock.Anything).Return(nil)

		require.NoError(t, svc.Index(context.Background(), k))
		assert.True(t, k.LastReinforcedAt.Equal(k.CreatedAt))
		assert.Equal(t, 1.0, k.DecayScore)
	})

	t.Run("rejects invalid without touching store", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		k := validInstance("inst-1")
		k.SourceFileIDs = nil

		err := svc.Index(context.Background(), k)
		assert.ErrorIs(t, err, domain.ErrEmptySourceFiles)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("store failure surfaces as unavailable", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		err := svc.Index(context.Background(), validInstance("inst-1"))
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		idx.AssertNotCalled(t, "Upsert", mock.Anything)
	})
}

func TestInstanceServiceRemove(t *testing.T) {
	t.Run("removes from store and index", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		repo.On("Delete", mock.Anything, "inst-1").Return(nil)
		idx.On("Remove", "inst-1").Return(nil)

		require.NoError(t, svc.Remove(context.Background(), "inst-1"))
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		svc := NewInstanceService(repo, &mockIndex{}, 2)

		repo.On("Delete", mock.Anything, "ghost").Return(domain.ErrInstanceNotFound)

		err := svc.Remove(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("tolerates index miss", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		idx := &mockIndex{}
		svc := NewInstanceService(repo, idx, 2)

		repo.On("Delete", mock.Anything, "inst-1").Return(nil)
		idx.On("Remove", "inst-1").Return(domain.ErrInstanceNotFound)

		require.NoError(t, svc.Remove(context.Background(), "inst-1"))
	})
}

func TestInstanceServiceList(t *testing.T) {
	t.Run("invalid cursor", func(t *testing.T) {
		svc := NewInstanceService(&mockInstanceRepo{}, &mockIndex{}, 2)

		_, err := svc.List(context.Background(), "not-a-cursor", 10)
		var de *domain.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.ErrCodeInvalidArgument, de.Code)
	})

	t.Run("passes decoded cursor through", func(t *testing.T) {
		repo := &mockInstanceRepo{}
		svc := NewInstanceService(repo, &mockIndex{}, 2)

		want := &InstancePageResult{Items: []*domain.KnowledgeInstance{validInstance("inst-1")}}
		repo.On("ListWithCursor", mock.Anything, (*pagination.Cursor)(nil), 10).Return(want, nil)

		page, err := svc.List(context.Background(), "", 10)
		require.NoError(t, err)
		assert.Equal(t, want, page)
	})
}

func TestInstanceServiceRebuildIndex(t *testing.T) {
	repo := &mockInstanceRepo{}
	idx := &mockIndex{}
	svc := NewInstanceService(repo, idx, 2)
	svc.batchSize = 2

	page1 := []*domain.KnowledgeInstance{validInstance("a"), validInstance("b")}
	page2 := []*domain.KnowledgeInstance{validInstance("c")}
	repo.On("ListBatch", mock.Anything, "", 2).Return(page1, nil).Once()
	repo.On("ListBatch", mock.Anything, "b", 2).Return(page2, nil).Once()
	idx.On("Rebuild", mock.Anything, mock.Anything).Return(0, nil)

	loaded, err := svc.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)
	repo.AssertExpectations(t)
}
