package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/substrate-kb/substrate/internal/domain"
	"github.com/substrate-kb/substrate/internal/pagination"
	"github.com/substrate-kb/substrate/internal/service"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InstanceRepository persists knowledge instances. It is the durable
// embedding store; the ANN index is a derived cache rebuilt from here.
type InstanceRepository struct {
	db dbtx
}

func NewInstanceRepository(pool *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{db: pool}
}

func NewInstanceRepositoryWithTx(tx dbtx) *InstanceRepository {
	return &InstanceRepository{db: tx}
}

const instanceColumns = `id, embedding, department_id, category_id, dikw_level, source_file_ids, created_at, last_reinforced_at, decay_score`

func (r *InstanceRepository) Upsert(ctx context.Context, k *domain.KnowledgeInstance) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_instances
			(id, embedding, department_id, category_id, dikw_level, source_file_ids, created_at, last_reinforced_at, decay_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			department_id = EXCLUDED.department_id,
			category_id = EXCLUDED.category_id,
			dikw_level = EXCLUDED.dikw_level,
			source_file_ids = EXCLUDED.source_file_ids,
			last_reinforced_at = EXCLUDED.last_reinforced_at,
			decay_score = EXCLUDED.decay_score`,
		k.ID,
		pgvector.NewVector(k.Embedding),
		k.DepartmentID,
		k.CategoryID,
		string(k.DIKWLevel),
		k.SourceFileIDs,
		k.CreatedAt,
		k.LastReinforcedAt,
		k.DecayScore,
	)
	return err
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeInstance, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM knowledge_instances WHERE id = $1`,
		id,
	)
	k, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return k, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_instances WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

// ListBatch pages through all instances in id order for decay runs and index
// rebuilds. Pass an empty afterID for the first batch.
func (r *InstanceRepository) ListBatch(ctx context.Context, afterID string, limit int) ([]*domain.KnowledgeInstance, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+instanceColumns+`
		 FROM knowledge_instances
		 WHERE id > $1
		 ORDER BY id
		 LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstanceRows(rows)
}

// ListWithCursor returns a page of instances in created_at desc order.
func (r *InstanceRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.InstancePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+instanceColumns+`
			 FROM knowledge_instances
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+instanceColumns+`
			 FROM knowledge_instances
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanInstanceRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.InstancePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateDecayScore is the scorer's per-instance atomic swap: one UPDATE per
// row, so readers see either the old or the new score.
func (r *InstanceRepository) UpdateDecayScore(ctx context.Context, id string, score float64, scoredAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_instances SET decay_score = $1, decay_scored_at = $2 WHERE id = $3`,
		score, scoredAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

// UpdateReinforcement advances the reinforcement clock and boosted score
// together.
func (r *InstanceRepository) UpdateReinforcement(ctx context.Context, id string, lastReinforcedAt time.Time, decayScore float64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_instances SET last_reinforced_at = $1, decay_score = $2 WHERE id = $3`,
		lastReinforcedAt, decayScore, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

func (r *InstanceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_instances`).Scan(&count)
	return count, err
}

func scanInstance(row pgx.Row) (*domain.KnowledgeInstance, error) {
	var k domain.KnowledgeInstance
	var embedding pgvector.Vector
	var level string
	if err := row.Scan(
		&k.ID, &embedding, &k.DepartmentID, &k.CategoryID, &level,
		&k.SourceFileIDs, &k.CreatedAt, &k.LastReinforcedAt, &k.DecayScore,
	); err != nil {
		return nil, err
	}
	k.Embedding = embedding.Slice()
	k.DIKWLevel = domain.DIKWLevel(level)
	return &k, nil
}

func scanInstanceRows(rows pgx.Rows) ([]*domain.KnowledgeInstance, error) {
	var results []*domain.KnowledgeInstance
	for rows.Next() {
		k, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}
