package admin

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/substrate-kb/substrate/internal/config"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/repository"
	"github.com/substrate-kb/substrate/internal/service"
	"github.com/substrate-kb/substrate/internal/storage"
)

func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage index snapshots",
		Long:  "Export the search index to object storage and inspect stored snapshots",
	}

	cmd.AddCommand(SnapshotExportCmd())
	cmd.AddCommand(SnapshotLatestCmd())

	return cmd
}

func SnapshotExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export a fresh index snapshot",
		Long:  "Rebuild the index from the store and upload a snapshot to object storage",
		RunE:  runSnapshotExport,
	}
}

func SnapshotLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the key of the most recent snapshot",
		RunE:  runSnapshotLatest,
	}
}

func newSnapshotStore(ctx context.Context, cfg *config.Config) (*storage.SnapshotStore, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("object storage is not configured: set SUBSTRATE_S3_ENDPOINT, SUBSTRATE_S3_ACCESS_KEY_ID, SUBSTRATE_S3_SECRET_ACCESS_KEY")
	}
	return storage.NewSnapshotStore(ctx, storage.SnapshotStoreConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure snapshot bucket: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	idx := index.New(index.DefaultConfig(cfg.EmbeddingDimension))
	instanceSvc := service.NewInstanceService(repository.NewInstanceRepository(pool), idx, cfg.EmbeddingDimension)

	loaded, err := instanceSvc.RebuildIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	var buf bytes.Buffer
	if err := idx.WriteSnapshot(&buf); err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key, err := store.PutSnapshot(ctx, &buf, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	fmt.Printf("Snapshot exported: %s (%d instances, %d bytes)\n", key, loaded, buf.Len())
	return nil
}

func runSnapshotLatest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}

	key, err := store.LatestSnapshotKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if key == "" {
		fmt.Println("No snapshots found")
		return nil
	}

	fmt.Println(key)
	return nil
}
