package repository

import (
	"context"
	"errors"
	"time"

	"sales_crm_backend/internal/authz"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("contact not found")

// Contact is a person record owned by a representative.
type Contact struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateContactParams carries the fields for a new contact.
type CreateContactParams struct {
	TenantID uuid.UUID
	OwnerID  uuid.UUID
	Name     string
	Email    string
	Phone    string
}

// Repository is the pgx-backed contact store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a contact repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, params CreateContactParams) (Contact, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO crm_contacts (tenant_id, owner_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, owner_id, name, email, phone, created_at, updated_at
	`, params.TenantID, params.OwnerID, params.Name, params.Email, params.Phone)
	return scanContact(row)
}

func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (Contact, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, owner_id, name, email, phone, created_at, updated_at
		FROM crm_contacts
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	return contact, nil
}

// List returns the tenant's contacts, restricted by the authz filter when
// one is present.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter *authz.Filter) ([]Contact, error) {
	query := `
		SELECT id, tenant_id, owner_id, name, email, phone, created_at, updated_at
		FROM crm_contacts
		WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter != nil {
		query += ` AND owner_id = $2`
		args = append(args, filter.Value)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return contacts, nil
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.TenantID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}
