package transport

import (
	"time"

	"sales_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// CreateStageRequest contains data for creating a new pipeline stage.
// Code is immutable after creation; isSystem is not accepted at all.
type CreateStageRequest struct {
	Code         string         `json:"code" validate:"required,min=1,max=64"`
	Name         string         `json:"name" validate:"required,min=1,max=100"`
	SortOrder    int            `json:"sortOrder" validate:"min=0"`
	IsClosedWon  bool           `json:"isClosedWon"`
	IsClosedLost bool           `json:"isClosedLost"`
	Config       map[string]any `json:"config,omitempty"`
}

// UpdateStageRequest contains data for patching an existing stage. There is
// deliberately no code or isSystem field here.
type UpdateStageRequest struct {
	Name         *string        `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	SortOrder    *int           `json:"sortOrder,omitempty" validate:"omitempty,min=0"`
	IsClosedWon  *bool          `json:"isClosedWon,omitempty"`
	IsClosedLost *bool          `json:"isClosedLost,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

// ReorderStageRequest moves a stage one position relative to its neighbor.
type ReorderStageRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// StageResponse represents a pipeline stage in API responses.
type StageResponse struct {
	ID           uuid.UUID      `json:"id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	SortOrder    int            `json:"sortOrder"`
	IsClosedWon  bool           `json:"isClosedWon"`
	IsClosedLost bool           `json:"isClosedLost"`
	IsSystem     bool           `json:"isSystem"`
	Config       map[string]any `json:"config,omitempty"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
}

// StageListResponse wraps the ordered stage list.
type StageListResponse struct {
	Items []StageResponse `json:"items"`
	Total int             `json:"total"`
}

// ToStageResponse converts a domain stage to its API shape.
func ToStageResponse(stage domain.Stage) StageResponse {
	return StageResponse{
		ID:           stage.ID,
		Code:         stage.Code,
		Name:         stage.Name,
		SortOrder:    stage.SortOrder,
		IsClosedWon:  stage.IsClosedWon,
		IsClosedLost: stage.IsClosedLost,
		IsSystem:     stage.IsSystem,
		Config:       stage.Config,
		CreatedAt:    stage.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    stage.UpdatedAt.Format(time.RFC3339),
	}
}

// ToStageListResponse converts an ordered stage slice.
func ToStageListResponse(stages []domain.Stage) StageListResponse {
	items := make([]StageResponse, 0, len(stages))
	for _, stage := range stages {
		items = append(items, ToStageResponse(stage))
	}
	return StageListResponse{Items: items, Total: len(items)}
}
