package service

import (
	"context"

	"github.com/substrate-kb/substrate/internal/domain"
)

// ProfileRepositoryInterface is the interest profile store contract.
type ProfileRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID string) (*domain.UserInterestProfile, error)
	Upsert(ctx context.Context, p *domain.UserInterestProfile) error
}

// EngagementRepositoryInterface records usage events.
type EngagementRepositoryInterface interface {
	Create(ctx context.Context, e *domain.Engagement) (string, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Engagement, error)
}

// TxRepositories exposes repositories bound to a single transaction.
type TxRepositories interface {
	Instances() InstanceRepositoryInterface
	Profiles() ProfileRepositoryInterface
	Engagements() EngagementRepositoryInterface
}

// TxRunnerInterface runs a function inside a database transaction.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
