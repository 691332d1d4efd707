// Package webhook delivers outbound event notifications to per-tenant
// HTTP destinations. Delivery is fire-and-forget: failures are logged and
// never surface to the mutation that produced the event.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Event types tenants can subscribe to.
const (
	EventDealClosedWon  = "deal.closed_won"
	EventContactCreated = "contact.created"
)

// Event is one domain occurrence offered to a tenant's webhook.
type Event struct {
	Type      string         `json:"type"`
	TenantID  uuid.UUID      `json:"tenantId"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Config is a tenant's webhook destination settings.
type Config struct {
	TenantID       uuid.UUID
	DestinationURL string
	Secret         string
	EnabledEvents  []string
	IsEnabled      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Accepts reports whether the config wants events of the given type.
// An empty enabled_events list means all types.
func (c Config) Accepts(eventType string) bool {
	if !c.IsEnabled {
		return false
	}
	if len(c.EnabledEvents) == 0 {
		return true
	}
	for _, t := range c.EnabledEvents {
		if t == eventType {
			return true
		}
	}
	return false
}
