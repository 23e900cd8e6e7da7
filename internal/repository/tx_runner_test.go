//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/service"
	"github.com/substrate-kb/substrate/internal/testutil"
)

func TestTxRunner_CommitPersistsAcrossRepos(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Instances().Upsert(ctx, seedInstance("ki-1", time.Now())); err != nil {
			return err
		}
		if err := repos.Profiles().Upsert(ctx, &domain.UserInterestProfile{
			UserID:         "user-1",
			InterestVector: []float32{1, 0, 0},
			LastUpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		}); err != nil {
			return err
		}
		_, err := repos.Engagements().Create(ctx, &domain.Engagement{
			UserID:     "user-1",
			InstanceID: "ki-1",
			Signal:     domain.SignalSearchSelection,
			Weight:     0.3,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		})
		return err
	})
	require.NoError(t, err)

	instanceRepo := NewInstanceRepository(pool)
	_, err = instanceRepo.GetByID(ctx, "ki-1")
	require.NoError(t, err)

	profileRepo := NewProfileRepository(pool)
	profile, err := profileRepo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, profile.InterestVector)

	engagementRepo := NewEngagementRepository(pool)
	engagements, err := engagementRepo.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, engagements, 1)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)

	boom := errors.New("boom")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Profiles().Upsert(ctx, &domain.UserInterestProfile{
			UserID:         "user-1",
			InterestVector: []float32{1, 0, 0},
			LastUpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	profileRepo := NewProfileRepository(pool)
	_, err = profileRepo.GetByUserID(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}
