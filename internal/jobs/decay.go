package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/substrate-kb/substrate/internal/service"
)

// DecayRunner is the scoring sweep the decay worker drives.
type DecayRunner interface {
	RunOnce(ctx context.Context) (*service.DecayRunResult, error)
}

// DecaySweeper adapts the decay scorer to the worker loop. One sweep
// recomputes every instance's decay score from its reinforcement recency.
type DecaySweeper struct {
	runner DecayRunner
}

func NewDecaySweeper(runner DecayRunner) *DecaySweeper {
	return &DecaySweeper{runner: runner}
}

// ProcessJobs runs one full decay sweep.
func (s *DecaySweeper) ProcessJobs(ctx context.Context) error {
	start := time.Now()
	result, err := s.runner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("decay sweep failed: %w", err)
	}

	log.Printf("decay sweep: updated=%d skipped=%d elapsed=%v",
		result.Updated, result.Skipped, time.Since(start).Round(time.Millisecond))
	return nil
}
