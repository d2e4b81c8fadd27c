package assets

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service manages the asset lifecycle.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns an asset by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (FixedAsset, error) {
	return s.repo.Get(ctx, id)
}

// DisposeAsset stops further depreciation of an asset.
func (s *Service) DisposeAsset(ctx context.Context, id uuid.UUID, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	return s.repo.Dispose(ctx, id, at)
}
