package lead

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// Repository provides access to lead aggregates
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lead, error)
	FindByPhone(ctx context.Context, phone string) (*Lead, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Lead, error)
	FindByStatus(ctx context.Context, status LeadStatus, filter shared.Filter) ([]Lead, error)
	Save(ctx context.Context, lead *Lead) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
