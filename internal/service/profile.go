package service

import (
	"context"
	"log"
	"time"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/index"
)

// Reinforcer boosts an instance's decay score in response to usage.
type Reinforcer interface {
	Reinforce(ctx context.Context, id string, weight float64) (float64, error)
}

// ProfileConfig tunes interest profile maintenance.
type ProfileConfig struct {
	// Beta is the EWMA step: how far a single engagement pulls the
	// interest vector toward the engaged instance's embedding.
	Beta float64
	// Dimension is the interest vector dimension.
	Dimension int
}

// EngagementInput is a single usage event to record.
type EngagementInput struct {
	UserID     string
	InstanceID string
	Signal     domain.EngagementSignal
	Weight     float64
}

// ProfileService maintains user interest profiles from engagement events.
// Recording an engagement updates the profile vector, logs the event, and
// reinforces the engaged instance.
type ProfileService struct {
	tx         TxRunnerInterface
	reinforcer Reinforcer
	cfg        ProfileConfig
	now        func() time.Time
}

func NewProfileService(tx TxRunnerInterface, reinforcer Reinforcer, cfg ProfileConfig) *ProfileService {
	return &ProfileService{
		tx:         tx,
		reinforcer: reinforcer,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecordEngagement applies one engagement: the profile vector moves toward
// the instance embedding by an exponentially-weighted step, and the event is
// logged in the same transaction. Reinforcement of the instance itself
// happens after commit; its loss on a crash only delays the next sweep.
func (s *ProfileService) RecordEngagement(ctx context.Context, input EngagementInput) (*domain.Engagement, error) {
	if input.UserID == "" {
		return nil, domain.ErrMissingUserID
	}
	if input.InstanceID == "" {
		return nil, domain.ErrMissingInstanceID
	}
	if !domain.IsValidEngagementSignal(input.Signal) {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "unknown engagement signal")
	}
	if input.Weight <= 0 {
		return nil, domain.ErrInvalidWeight
	}

	now := s.now()
	engagement := &domain.Engagement{
		UserID:     input.UserID,
		InstanceID: input.InstanceID,
		Signal:     input.Signal,
		Weight:     input.Weight,
		CreatedAt:  now,
	}

	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		instance, err := repos.Instances().GetByID(ctx, input.InstanceID)
		if err != nil {
			return err
		}

		profile, err := repos.Profiles().GetByUserID(ctx, input.UserID)
		if err != nil {
			if err != domain.ErrProfileNotFound {
				return err
			}
			profile = domain.NewUserInterestProfile(input.UserID, s.cfg.Dimension)
		}

		profile.InterestVector = blend(profile.InterestVector, instance.Embedding, s.cfg.Beta)
		profile.LastUpdatedAt = now
		if err := repos.Profiles().Upsert(ctx, profile); err != nil {
			return err
		}

		id, err := repos.Engagements().Create(ctx, engagement)
		if err != nil {
			return err
		}
		engagement.ID = id
		return nil
	})
	if err != nil {
		if de, ok := err.(*domain.DomainError); ok {
			return nil, de
		}
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}

	// The engagement is already durable; a failed boost is not a failed
	// engagement. The next decay sweep recomputes the score from the store.
	if _, err := s.reinforcer.Reinforce(ctx, input.InstanceID, input.Weight); err != nil {
		log.Printf("engagement: reinforcement of %s failed (recorded anyway): %v", input.InstanceID, err)
	}
	return engagement, nil
}

// blend moves v toward e by beta and renormalizes to unit length.
func blend(v, e []float32, beta float64) []float32 {
	if len(v) != len(e) {
		v = make([]float32, len(e))
	}
	out := make([]float32, len(e))
	for i := range e {
		out[i] = float32((1-beta)*float64(v[i]) + beta*float64(e[i]))
	}
	return index.Normalize(out)
}
