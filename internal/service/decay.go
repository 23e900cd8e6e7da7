package service

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/telemetry"
)

// reinforceEpsilon is the floor applied to a fully-decayed score before a
// multiplicative boost, so reinforcement can revive forgotten instances.
const reinforceEpsilon = 0.01

// DecayConfig tunes the retention model.
type DecayConfig struct {
	// BaseHalfLife is the half-life for information-level instances.
	BaseHalfLife time.Duration
	// BatchSize bounds how many instances are scored per store round-trip.
	BatchSize int
	// LevelMultipliers scales the half-life per DIKW level. Higher levels
	// decay slower: raw data ages out quickly, distilled wisdom persists.
	LevelMultipliers map[domain.DIKWLevel]float64
}

func DefaultDecayConfig(baseHalfLife time.Duration, batchSize int) DecayConfig {
	return DecayConfig{
		BaseHalfLife: baseHalfLife,
		BatchSize:    batchSize,
		LevelMultipliers: map[domain.DIKWLevel]float64{
			domain.DIKWData:        0.5,
			domain.DIKWInformation: 1.0,
			domain.DIKWKnowledge:   2.0,
			domain.DIKWWisdom:      4.0,
		},
	}
}

// DecayRunResult summarizes one scoring sweep.
type DecayRunResult struct {
	Updated int
	Skipped int
}

// DecayScorer recomputes decay scores from reinforcement recency and pushes
// them into the index's score view.
type DecayScorer struct {
	repo InstanceRepositoryInterface
	idx  SearchIndexInterface
	cfg  DecayConfig
	now  func() time.Time
}

func NewDecayScorer(repo InstanceRepositoryInterface, idx SearchIndexInterface, cfg DecayConfig) *DecayScorer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &DecayScorer{
		repo: repo,
		idx:  idx,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (d *DecayScorer) halfLifeFor(level domain.DIKWLevel) time.Duration {
	mult, ok := d.cfg.LevelMultipliers[level]
	if !ok || mult <= 0 {
		mult = 1.0
	}
	return time.Duration(float64(d.cfg.BaseHalfLife) * mult)
}

// scoreAt computes 0.5^(elapsed/halfLife) since the last reinforcement.
func (d *DecayScorer) scoreAt(k *domain.KnowledgeInstance, now time.Time) float64 {
	elapsed := now.Sub(k.LastReinforcedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	halfLife := d.halfLifeFor(k.DIKWLevel)
	return math.Exp2(-float64(elapsed) / float64(halfLife))
}

// RunOnce sweeps every instance and recomputes its decay score. Instances
// that fail to update individually are skipped and counted; a store failure
// aborts the sweep with no partial result beyond what already committed.
func (d *DecayScorer) RunOnce(ctx context.Context) (*DecayRunResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DecayScorer.RunOnce", telemetry.SpanAttributes{
		Operation: "decay_sweep",
	})
	defer span.End()

	result := &DecayRunResult{}
	now := d.now()
	afterID := ""

	for {
		batch, err := d.repo.ListBatch(ctx, afterID, d.cfg.BatchSize)
		if err != nil {
			return result, domain.ErrStoreUnavailable.WithCause(err)
		}
		if len(batch) == 0 {
			break
		}

		for _, k := range batch {
			score := d.scoreAt(k, now)
			if err := d.repo.UpdateDecayScore(ctx, k.ID, score, now); err != nil {
				log.Printf("decay: skipping %s: %v", k.ID, err)
				result.Skipped++
				continue
			}
			d.idx.SetDecayScore(k.ID, score)
			result.Updated++
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < d.cfg.BatchSize {
			break
		}
	}

	return result, nil
}

// Reinforce boosts an instance's decay score by weight, capped at 1.0. The
// reinforcement timestamp is back-dated so the next sweep resumes decaying
// from the boosted score rather than resetting to full strength.
func (d *DecayScorer) Reinforce(ctx context.Context, id string, weight float64) (float64, error) {
	if id == "" {
		return 0, domain.ErrMissingInstanceID
	}
	if weight <= 0 {
		return 0, domain.ErrInvalidWeight
	}

	ctx, span := telemetry.StartSpan(ctx, "DecayScorer.Reinforce", telemetry.SpanAttributes{
		InstanceID: id,
		Operation:  "reinforce",
	})
	defer span.End()

	k, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if err == domain.ErrInstanceNotFound {
			return 0, err
		}
		return 0, domain.ErrStoreUnavailable.WithCause(err)
	}

	now := d.now()
	current := d.scoreAt(k, now)
	if current < reinforceEpsilon {
		current = reinforceEpsilon
	}
	boosted := current * (1 + weight)
	if boosted > 1.0 {
		boosted = 1.0
	}

	// Solve 0.5^(elapsed/halfLife) = boosted for elapsed, and pretend the
	// last reinforcement happened that long ago.
	halfLife := d.halfLifeFor(k.DIKWLevel)
	elapsed := time.Duration(float64(halfLife) * math.Log2(1/boosted))
	lastReinforcedAt := now.Add(-elapsed)

	if err := d.repo.UpdateReinforcement(ctx, id, lastReinforcedAt, boosted); err != nil {
		return 0, domain.ErrStoreUnavailable.WithCause(err)
	}
	d.idx.SetDecayScore(id, boosted)
	return boosted, nil
}
