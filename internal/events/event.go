// Package events defines the CRM domain events. The bus carrying them
// lives in platform/events; the aliases below keep modules on a single
// import for both.
package events

import (
	"sales_crm_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event     = events.Event
	Bus       = events.Bus
	Handler   = events.Handler
	BaseEvent = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// DealStageChanged is published after a deal's stage assignment is durably
// committed.
type DealStageChanged struct {
	BaseEvent
	DealID      uuid.UUID `json:"dealId"`
	TenantID    uuid.UUID `json:"tenantId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	FromStageID uuid.UUID `json:"fromStageId"`
	ToStageID   uuid.UUID `json:"toStageId"`
}

func (e DealStageChanged) EventName() string { return "crm.deal.stage_changed" }

// DealClosedWon is published when a deal enters the closed-won stage.
type DealClosedWon struct {
	BaseEvent
	DealID    uuid.UUID `json:"dealId"`
	TenantID  uuid.UUID `json:"tenantId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	StageID   uuid.UUID `json:"stageId"`
	StageCode string    `json:"stageCode"`
	Title     string    `json:"title"`
	ValueCents int64    `json:"valueCents"`
}

func (e DealClosedWon) EventName() string { return "crm.deal.closed_won" }

// ContactCreated is published when a new contact record is created.
type ContactCreated struct {
	BaseEvent
	ContactID uuid.UUID `json:"contactId"`
	TenantID  uuid.UUID `json:"tenantId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
}

func (e ContactCreated) EventName() string { return "crm.contact.created" }
