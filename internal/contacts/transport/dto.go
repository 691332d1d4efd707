// Package transport defines request and response shapes for the contacts API.
package transport

import (
	"time"

	"sales_crm_backend/internal/contacts/repository"
)

// CreateContactRequest is the payload for creating a contact.
type CreateContactRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// ContactResponse is a contact as returned by the API.
type ContactResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactListResponse wraps a list of contacts.
type ContactListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
}

// ToContactResponse converts a repository contact.
func ToContactResponse(c repository.Contact) ContactResponse {
	return ContactResponse{
		ID:        c.ID.String(),
		OwnerID:   c.OwnerID.String(),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToContactListResponse converts a slice of repository contacts.
func ToContactListResponse(contacts []repository.Contact) ContactListResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ToContactResponse(c))
	}
	return ContactListResponse{Contacts: out}
}
