package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/substrate-kb/substrate/internal/domain"
)

// ProfileRepository persists derived user interest profiles.
type ProfileRepository struct {
	db dbtx
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: pool}
}

func NewProfileRepositoryWithTx(tx dbtx) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserInterestProfile, error) {
	var p domain.UserInterestProfile
	var vector pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT user_id, interest_vector, last_updated_at
		 FROM user_interest_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &vector, &p.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	p.InterestVector = vector.Slice()
	return &p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.UserInterestProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_interest_profiles (user_id, interest_vector, last_updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
			interest_vector = EXCLUDED.interest_vector,
			last_updated_at = EXCLUDED.last_updated_at`,
		p.UserID,
		pgvector.NewVector(p.InterestVector),
		p.LastUpdatedAt,
	)
	return err
}
