// Package service implements the stage registry: the invariant-checked set
// of pipeline stages deals move through.
package service

import (
	"context"
	"errors"
	"fmt"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/pipeline/domain"
	"sales_crm_backend/internal/pipeline/repository"
	"sales_crm_backend/platform/apperr"
	"sales_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Service guards the stage invariants: unique immutable codes, at most one
// closed-won and one closed-lost stage, protected system stages, and no
// deletion of stages still referenced by deals.
type Service struct {
	store repository.Store
	log   *logger.Logger
}

// New creates a stage registry service.
func New(store repository.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// CreateStageInput holds the caller-supplied fields for a new stage.
type CreateStageInput struct {
	Code         string
	Name         string
	SortOrder    int
	IsClosedWon  bool
	IsClosedLost bool
	Config       map[string]any
}

// CreateStage adds a stage to the registry. New stages are never system
// stages.
func (s *Service) CreateStage(ctx context.Context, tenantID uuid.UUID, input CreateStageInput) (domain.Stage, error) {
	if !domain.IsValidCode(input.Code) {
		return domain.Stage{}, apperr.Validation("stage code must be a lowercase slug")
	}
	if input.Name == "" {
		return domain.Stage{}, apperr.Validation("stage name is required")
	}
	if input.IsClosedWon && input.IsClosedLost {
		return domain.Stage{}, apperr.Validation("a stage cannot be both closed-won and closed-lost")
	}

	if input.IsClosedWon || input.IsClosedLost {
		stages, err := s.store.ListOrdered(ctx, tenantID)
		if err != nil {
			return domain.Stage{}, err
		}
		if holder, conflict := domain.ClosedFlagConflict(stages, uuid.Nil, input.IsClosedWon, input.IsClosedLost); conflict {
			return domain.Stage{}, closedFlagConflictErr(holder)
		}
	}

	stage, err := s.store.Create(ctx, repository.CreateStageParams{
		TenantID:     tenantID,
		Code:         input.Code,
		Name:         input.Name,
		SortOrder:    input.SortOrder,
		IsClosedWon:  input.IsClosedWon,
		IsClosedLost: input.IsClosedLost,
		Config:       input.Config,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return domain.Stage{}, apperr.Conflict(fmt.Sprintf("stage code %q is already in use", input.Code))
		}
		if errors.Is(err, repository.ErrDuplicateSortOrder) {
			return domain.Stage{}, apperr.Conflict(fmt.Sprintf("sort order %d is already taken by another stage", input.SortOrder))
		}
		return domain.Stage{}, err
	}

	if s.log != nil {
		s.log.StageMutation("create", stage.Code, tenantID.String())
	}
	return stage, nil
}

// UpdateStageInput is a sparse patch. Code and IsSystem are immutable; the
// transport layer rejects them before they reach here, and the repository
// cannot express them either.
type UpdateStageInput struct {
	Name         *string
	SortOrder    *int
	IsClosedWon  *bool
	IsClosedLost *bool
	Config       map[string]any
	ConfigSet    bool
}

// UpdateStage applies a patch to an existing stage.
func (s *Service) UpdateStage(ctx context.Context, tenantID, id uuid.UUID, input UpdateStageInput) (domain.Stage, error) {
	current, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Stage{}, apperr.NotFound("stage not found")
		}
		return domain.Stage{}, err
	}

	if input.Name != nil && *input.Name == "" {
		return domain.Stage{}, apperr.Validation("stage name cannot be empty")
	}

	wantWon := current.IsClosedWon
	if input.IsClosedWon != nil {
		wantWon = *input.IsClosedWon
	}
	wantLost := current.IsClosedLost
	if input.IsClosedLost != nil {
		wantLost = *input.IsClosedLost
	}
	if wantWon && wantLost {
		return domain.Stage{}, apperr.Validation("a stage cannot be both closed-won and closed-lost")
	}

	if wantWon || wantLost {
		stages, err := s.store.ListOrdered(ctx, tenantID)
		if err != nil {
			return domain.Stage{}, err
		}
		if holder, conflict := domain.ClosedFlagConflict(stages, id, wantWon, wantLost); conflict {
			return domain.Stage{}, closedFlagConflictErr(holder)
		}
	}

	stage, err := s.store.Update(ctx, tenantID, id, repository.UpdateStageParams{
		Name:         input.Name,
		SortOrder:    input.SortOrder,
		IsClosedWon:  input.IsClosedWon,
		IsClosedLost: input.IsClosedLost,
		Config:       input.Config,
		ConfigSet:    input.ConfigSet,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Stage{}, apperr.NotFound("stage not found")
		}
		if errors.Is(err, repository.ErrDuplicateSortOrder) {
			order := current.SortOrder
			if input.SortOrder != nil {
				order = *input.SortOrder
			}
			return domain.Stage{}, apperr.Conflict(fmt.Sprintf("sort order %d is already taken by another stage", order))
		}
		return domain.Stage{}, err
	}

	if s.log != nil {
		s.log.StageMutation("update", stage.Code, tenantID.String())
	}
	return stage, nil
}

// DeleteStage removes a stage. The delete gate runs first, before any
// state is read. System stages are protected; stages still referenced by
// deals block with the referencing count so the caller can tell the user
// what is in the way.
func (s *Service) DeleteStage(ctx context.Context, principal authz.Principal, tenantID, id uuid.UUID) error {
	if !authz.CanDelete(principal) {
		return apperr.Forbidden("not permitted to delete records")
	}

	stage, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("stage not found")
		}
		return err
	}

	if stage.IsSystem {
		return apperr.Protected(fmt.Sprintf("stage %q is a system stage and cannot be deleted", stage.Code))
	}

	count, err := s.store.CountDealsInStage(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("stage %q is referenced by %d deal(s)", stage.Code, count)).
			WithDetails(map[string]any{"blockingDeals": count})
	}

	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("stage not found")
		}
		return err
	}

	if s.log != nil {
		s.log.StageMutation("delete", stage.Code, tenantID.String())
	}
	return nil
}

// Reorder moves a stage one position up or down by swapping sort_order with
// its immediate neighbor. Moving the first stage up or the last stage down
// is a no-op. The swap is O(1), touches only the two rows involved, and is
// idempotent when repeated against the same neighboring pair.
func (s *Service) Reorder(ctx context.Context, tenantID, id uuid.UUID, direction domain.Direction) ([]domain.Stage, error) {
	if !direction.Valid() {
		return nil, apperr.Validation("direction must be \"up\" or \"down\"")
	}

	stages, err := s.store.ListOrdered(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, stage := range stages {
		if stage.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, apperr.NotFound("stage not found")
	}

	var neighbor int
	switch direction {
	case domain.DirectionUp:
		neighbor = index - 1
	case domain.DirectionDown:
		neighbor = index + 1
	}
	if neighbor < 0 || neighbor >= len(stages) {
		// Boundary move: nothing to swap with.
		return stages, nil
	}

	if err := s.store.SwapOrder(ctx, tenantID, stages[index].ID, stages[neighbor].ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("stage not found")
		}
		return nil, err
	}

	if s.log != nil {
		s.log.StageMutation("reorder", stages[index].Code, tenantID.String())
	}
	return s.store.ListOrdered(ctx, tenantID)
}

// GetStage returns a single stage.
func (s *Service) GetStage(ctx context.Context, tenantID, id uuid.UUID) (domain.Stage, error) {
	stage, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Stage{}, apperr.NotFound("stage not found")
		}
		return domain.Stage{}, err
	}
	return stage, nil
}

// ListOrdered returns all stages sorted ascending by position. This is the
// canonical read for rendering the pipeline and validating transition targets.
func (s *Service) ListOrdered(ctx context.Context, tenantID uuid.UUID) ([]domain.Stage, error) {
	return s.store.ListOrdered(ctx, tenantID)
}

func closedFlagConflictErr(holder domain.Stage) *apperr.Error {
	flag := "closed-won"
	if holder.IsClosedLost {
		flag = "closed-lost"
	}
	return apperr.Conflict(fmt.Sprintf("stage %q already holds the %s flag", holder.Code, flag)).
		WithDetails(map[string]any{"conflictingStage": holder.Code})
}
