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

var ErrNotFound = errors.New("deal not found")

// Deal is a sales deal as persisted. Only the stage assignment is mutated
// through this subsystem; the remaining fields are host-application plumbing.
type Deal struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OwnerID        uuid.UUID
	Title          string
	ValueCents     int64
	StageID        uuid.UUID
	StageEnteredAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository is the pgx-backed deal store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a deal repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const dealColumns = `id, tenant_id, owner_id, title, value_cents, stage_id, stage_entered_at, created_at, updated_at`

func (r *Repository) GetDeal(ctx context.Context, tenantID, id uuid.UUID) (Deal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+dealColumns+`
		FROM crm_deals
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deal{}, ErrNotFound
		}
		return Deal{}, err
	}
	return deal, nil
}

// List returns the tenant's deals, restricted by the authz filter when one
// is present.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter *authz.Filter) ([]Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM crm_deals
		WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter != nil {
		// The only filterable column is the owner; the field name comes from
		// the authz policy, not from user input.
		query += ` AND owner_id = $2`
		args = append(args, filter.Value)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return deals, nil
}

// UpdateDealStage durably reassigns the deal's stage and resets the dwell
// clock. Returns the new stage_entered_at timestamp.
func (r *Repository) UpdateDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID) (time.Time, error) {
	var enteredAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE crm_deals
		SET stage_id = $3, stage_entered_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING stage_entered_at
	`, tenantID, dealID, stageID).Scan(&enteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return enteredAt, nil
}

func scanDeal(row pgx.Row) (Deal, error) {
	var deal Deal
	err := row.Scan(
		&deal.ID, &deal.TenantID, &deal.OwnerID, &deal.Title, &deal.ValueCents,
		&deal.StageID, &deal.StageEnteredAt, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		return Deal{}, err
	}
	return deal, nil
}
