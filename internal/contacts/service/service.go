// Package service implements contact operations on top of the repository,
// wiring the access policy and outbound notifications.
package service

import (
	"context"
	"strings"
	"time"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/contacts/repository"
	"sales_crm_backend/internal/events"
	"sales_crm_backend/internal/webhook"
	"sales_crm_backend/platform/apperr"
	"sales_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, params repository.CreateContactParams) (repository.Contact, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (repository.Contact, error)
	List(ctx context.Context, tenantID uuid.UUID, filter *authz.Filter) ([]repository.Contact, error)
}

// Notifier hands domain occurrences to the outbound webhook subsystem.
type Notifier interface {
	Notify(ctx context.Context, event webhook.Event)
}

// CreateContactInput carries the caller-supplied contact fields.
type CreateContactInput struct {
	Name  string
	Email string
	Phone string
}

// Service implements contact use cases.
type Service struct {
	store    Store
	notifier Notifier
	bus      events.Bus
	log      *logger.Logger
}

// New creates a contact service.
func New(store Store, notifier Notifier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, notifier: notifier, bus: bus, log: log}
}

// CreateContact creates a contact owned by the caller.
func (s *Service) CreateContact(ctx context.Context, principal authz.Principal, tenantID uuid.UUID, input CreateContactInput) (repository.Contact, error) {
	const op = "contacts.CreateContact"

	if !authz.CanWrite(principal, nil) {
		return repository.Contact{}, apperr.Forbidden("not permitted to create contacts").WithOp(op)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return repository.Contact{}, apperr.Validation("contact name is required")
	}

	contact, err := s.store.Create(ctx, repository.CreateContactParams{
		TenantID: tenantID,
		OwnerID:  principal.ID,
		Name:     name,
		Email:    strings.TrimSpace(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
	})
	if err != nil {
		return repository.Contact{}, apperr.Wrap(apperr.KindInternal, "failed to create contact", err).WithOp(op)
	}

	s.bus.Publish(ctx, events.ContactCreated{
		BaseEvent: events.NewBaseEvent(),
		ContactID: contact.ID,
		TenantID:  tenantID,
		OwnerID:   contact.OwnerID,
		Name:      contact.Name,
		Email:     contact.Email,
	})
	s.notifier.Notify(ctx, webhook.Event{
		Type:     webhook.EventContactCreated,
		TenantID: tenantID,
		Payload: map[string]any{
			"contactId": contact.ID.String(),
			"name":      contact.Name,
			"email":     contact.Email,
			"ownerId":   contact.OwnerID.String(),
		},
		Timestamp: time.Now().UTC(),
	})

	return contact, nil
}

// GetContact returns one contact visible to the caller.
func (s *Service) GetContact(ctx context.Context, principal authz.Principal, tenantID, id uuid.UUID) (repository.Contact, error) {
	const op = "contacts.GetContact"

	contact, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.Contact{}, apperr.NotFound("contact not found").WithOp(op)
		}
		return repository.Contact{}, apperr.Wrap(apperr.KindInternal, "failed to load contact", err).WithOp(op)
	}
	if !authz.CanRead(principal, &contact.OwnerID, authz.KindContact) {
		return repository.Contact{}, apperr.Forbidden("not permitted to view this contact").WithOp(op)
	}
	return contact, nil
}

// ListContacts returns the tenant's contacts visible to the caller.
func (s *Service) ListContacts(ctx context.Context, principal authz.Principal, tenantID uuid.UUID) ([]repository.Contact, error) {
	const op = "contacts.ListContacts"

	filter := authz.RecordFilter(principal, authz.KindContact, "owner_id")
	contacts, err := s.store.List(ctx, tenantID, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list contacts", err).WithOp(op)
	}
	return contacts, nil
}
