// Package transport defines request and response shapes for the deals API.
package transport

import (
	"time"

	"sales_crm_backend/internal/deals/coordinator"
	"sales_crm_backend/internal/deals/repository"
)

// TransitionRequest asks to move a deal to another stage.
type TransitionRequest struct {
	ToStageID string `json:"toStageId" validate:"required,uuid"`
}

// TransitionResponse reports the outcome of a transition request.
type TransitionResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ToTransitionResponse converts a coordinator result.
func ToTransitionResponse(res coordinator.Result) TransitionResponse {
	return TransitionResponse{Status: string(res.Status), Reason: res.Reason}
}

// DealResponse is a deal as returned by the API, with the optimistic
// stage projection already applied.
type DealResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Title          string    `json:"title"`
	ValueCents     int64     `json:"valueCents"`
	StageID        string    `json:"stageId"`
	StageEnteredAt time.Time `json:"stageEnteredAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DealListResponse wraps a list of deals.
type DealListResponse struct {
	Deals []DealResponse `json:"deals"`
}

// ToDealResponse converts a repository deal.
func ToDealResponse(deal repository.Deal) DealResponse {
	return DealResponse{
		ID:             deal.ID.String(),
		OwnerID:        deal.OwnerID.String(),
		Title:          deal.Title,
		ValueCents:     deal.ValueCents,
		StageID:        deal.StageID.String(),
		StageEnteredAt: deal.StageEnteredAt,
		CreatedAt:      deal.CreatedAt,
		UpdatedAt:      deal.UpdatedAt,
	}
}

// ToDealListResponse converts a slice of repository deals.
func ToDealListResponse(deals []repository.Deal) DealListResponse {
	out := make([]DealResponse, 0, len(deals))
	for _, deal := range deals {
		out = append(out, ToDealResponse(deal))
	}
	return DealListResponse{Deals: out}
}
