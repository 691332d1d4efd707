package repository

import (
	"context"
	"errors"

	"sales_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a stage does not exist.
	ErrNotFound = errors.New("pipeline stage not found")
	// ErrDuplicateCode is returned when a stage code is already in use
	// within the tenant.
	ErrDuplicateCode = errors.New("pipeline stage code already in use")
	// ErrDuplicateSortOrder is returned when a write would place two
	// stages at the same position within the tenant.
	ErrDuplicateSortOrder = errors.New("pipeline stage sort order already in use")
)

// CreateStageParams holds the fields for a new stage. IsSystem is absent on
// purpose: only seed migrations create system stages.
type CreateStageParams struct {
	TenantID     uuid.UUID
	Code         string
	Name         string
	SortOrder    int
	IsClosedWon  bool
	IsClosedLost bool
	Config       map[string]any
}

// UpdateStageParams is a sparse patch; nil fields are left untouched.
// Code and IsSystem are immutable and therefore not representable here.
type UpdateStageParams struct {
	Name         *string
	SortOrder    *int
	IsClosedWon  *bool
	IsClosedLost *bool
	Config       map[string]any
	ConfigSet    bool
}

// Store is the persistence surface the stage registry service depends on.
type Store interface {
	Create(ctx context.Context, params CreateStageParams) (domain.Stage, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (domain.Stage, error)
	ListOrdered(ctx context.Context, tenantID uuid.UUID) ([]domain.Stage, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, params UpdateStageParams) (domain.Stage, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	CountDealsInStage(ctx context.Context, tenantID, id uuid.UUID) (int, error)
	// SwapOrder exchanges the sort_order of two stages in one atomic write,
	// so no reader can observe both stages holding the same position.
	SwapOrder(ctx context.Context, tenantID, a, b uuid.UUID) error
}
