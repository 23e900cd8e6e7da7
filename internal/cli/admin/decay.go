package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/substrate-kb/substrate/internal/config"
	"github.com/substrate-kb/substrate/internal/database"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/repository"
	"github.com/substrate-kb/substrate/internal/service"
)

func DecayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Manage decay scoring",
		Long:  "Run decay scoring sweeps outside the server loop",
	}

	cmd.AddCommand(DecayRunCmd())

	return cmd
}

func DecayRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one decay sweep",
		Long:  "Recompute every instance's decay score from its reinforcement recency and persist the results",
		RunE:  runDecayRun,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDecayRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	instanceRepo := repository.NewInstanceRepository(pool)
	// The sweep persists scores; the throwaway index only absorbs the
	// score pushes the scorer performs alongside.
	idx := index.New(index.DefaultConfig(cfg.EmbeddingDimension))
	scorer := service.NewDecayScorer(instanceRepo, idx,
		service.DefaultDecayConfig(cfg.DecayBaseHalfLife, cfg.DecayBatchSize))

	result, err := scorer.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("decay sweep failed: %w", err)
	}

	if outputFormat == "json" {
		payload, err := json.MarshalIndent(map[string]int{
			"updated": result.Updated,
			"skipped": result.Skipped,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("Decay sweep complete: %d updated, %d skipped\n", result.Updated, result.Skipped)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}
