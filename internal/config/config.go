package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// Embedding dimension is fixed per deployment; every indexed instance
	// and every query vector must match it.
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"1536"`

	// Search ranking
	SearchAlpha float64 `envconfig:"SEARCH_ALPHA" default:"0.7"`
	TopKCap     int     `envconfig:"TOP_K_CAP" default:"100"`

	// ANN index tunables
	BruteForceThreshold int `envconfig:"BRUTE_FORCE_THRESHOLD" default:"2000"`
	HNSWM               int `envconfig:"HNSW_M" default:"16"`
	HNSWEfConstruction  int `envconfig:"HNSW_EF_CONSTRUCTION" default:"200"`
	HNSWEfSearch        int `envconfig:"HNSW_EF_SEARCH" default:"64"`

	// Decay scoring
	DecayInterval     time.Duration `envconfig:"DECAY_INTERVAL" default:"1h"`
	DecayBaseHalfLife time.Duration `envconfig:"DECAY_BASE_HALF_LIFE" default:"2160h"` // 90 days
	DecayBatchSize    int           `envconfig:"DECAY_BATCH_SIZE" default:"500"`

	// Recommendations
	FreshnessFloor      float64 `envconfig:"FRESHNESS_FLOOR" default:"0.05"`
	CandidateMultiplier int     `envconfig:"CANDIDATE_MULTIPLIER" default:"4"`

	// Interest profile EWMA weight for new engagements.
	InterestBeta float64 `envconfig:"INTEREST_BETA" default:"0.2"`

	// SnapshotInterval controls how often the index is exported to object
	// storage when S3 is configured.
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"6h"`

	// Optional S3-compatible storage for index snapshots.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"substrate-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Optional query-text embedding provider.
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SUBSTRATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings that would make ranking behavior undefined.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.SearchAlpha < 0 || c.SearchAlpha > 1 {
		return fmt.Errorf("search alpha must be in [0,1], got %g", c.SearchAlpha)
	}
	if c.TopKCap <= 0 {
		return fmt.Errorf("top_k cap must be positive, got %d", c.TopKCap)
	}
	if c.DecayBaseHalfLife <= 0 {
		return fmt.Errorf("decay base half-life must be positive, got %s", c.DecayBaseHalfLife)
	}
	if c.FreshnessFloor < 0 || c.FreshnessFloor > 1 {
		return fmt.Errorf("freshness floor must be in [0,1], got %g", c.FreshnessFloor)
	}
	if c.InterestBeta <= 0 || c.InterestBeta > 1 {
		return fmt.Errorf("interest beta must be in (0,1], got %g", c.InterestBeta)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
