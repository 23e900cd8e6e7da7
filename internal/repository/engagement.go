package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/substrate-kb/substrate/internal/domain"
)

// EngagementRepository stores usage events for evaluation/feedback loops.
type EngagementRepository struct {
	db dbtx
}

func NewEngagementRepository(pool *pgxpool.Pool) *EngagementRepository {
	return &EngagementRepository{db: pool}
}

func NewEngagementRepositoryWithTx(tx dbtx) *EngagementRepository {
	return &EngagementRepository{db: tx}
}

func (r *EngagementRepository) Create(ctx context.Context, e *domain.Engagement) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO engagements (user_id, instance_id, signal, weight, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.UserID,
		e.InstanceID,
		string(e.Signal),
		e.Weight,
		e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByUser returns a user's most recent engagements, newest first.
func (r *EngagementRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Engagement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, instance_id, signal, weight, created_at
		 FROM engagements
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Engagement
	for rows.Next() {
		var e domain.Engagement
		var signal string
		if err := rows.Scan(&e.ID, &e.UserID, &e.InstanceID, &signal, &e.Weight, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Signal = domain.EngagementSignal(signal)
		results = append(results, &e)
	}
	return results, rows.Err()
}
