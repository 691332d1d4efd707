package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"sales_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository is the pgx-backed stage store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a stage repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const stageColumns = `id, tenant_id, code, name, sort_order, is_closed_won, is_closed_lost, is_system, config, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, params CreateStageParams) (domain.Stage, error) {
	configBytes, err := marshalConfig(params.Config)
	if err != nil {
		return domain.Stage{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO crm_pipeline_stages (tenant_id, code, name, sort_order, is_closed_won, is_closed_lost, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+stageColumns,
		params.TenantID, params.Code, params.Name, params.SortOrder,
		params.IsClosedWon, params.IsClosedLost, configBytes,
	)

	stage, err := scanStage(row)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return domain.Stage{}, mapped
		}
		return domain.Stage{}, err
	}
	return stage, nil
}

// mapUniqueViolation translates a 23505 on one of the stage table's unique
// constraints to its sentinel, or returns nil for everything else.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "code"):
		return ErrDuplicateCode
	case strings.Contains(pgErr.ConstraintName, "sort"):
		return ErrDuplicateSortOrder
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (domain.Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+`
		FROM crm_pipeline_stages
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stage{}, ErrNotFound
		}
		return domain.Stage{}, err
	}
	return stage, nil
}

// ListOrdered is the canonical read path: all stages for the tenant sorted
// ascending by sort_order.
func (r *Repository) ListOrdered(ctx context.Context, tenantID uuid.UUID) ([]domain.Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stageColumns+`
		FROM crm_pipeline_stages
		WHERE tenant_id = $1
		ORDER BY sort_order ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]domain.Stage, 0)
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stages, nil
}

func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, params UpdateStageParams) (domain.Stage, error) {
	sets := make([]string, 0, 5)
	args := []any{tenantID, id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.SortOrder != nil {
		appendSet("sort_order", *params.SortOrder)
	}
	if params.IsClosedWon != nil {
		appendSet("is_closed_won", *params.IsClosedWon)
	}
	if params.IsClosedLost != nil {
		appendSet("is_closed_lost", *params.IsClosedLost)
	}
	if params.ConfigSet {
		configBytes, err := marshalConfig(params.Config)
		if err != nil {
			return domain.Stage{}, err
		}
		appendSet("config", configBytes)
	}

	if len(sets) == 0 {
		return r.Get(ctx, tenantID, id)
	}

	query := `
		UPDATE crm_pipeline_stages
		SET ` + strings.Join(sets, ", ") + `, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + stageColumns

	stage, err := scanStage(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stage{}, ErrNotFound
		}
		if mapped := mapUniqueViolation(err); mapped != nil {
			return domain.Stage{}, mapped
		}
		return domain.Stage{}, err
	}
	return stage, nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM crm_pipeline_stages
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CountDealsInStage(ctx context.Context, tenantID, id uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM crm_deals
		WHERE tenant_id = $1 AND stage_id = $2
	`, tenantID, id).Scan(&count)
	return count, err
}

// SwapOrder exchanges the sort_order of two stages in a single transaction.
// The unique (tenant_id, sort_order) constraint is deferred, so the
// intermediate state inside the transaction never becomes visible.
func (r *Repository) SwapOrder(ctx context.Context, tenantID, a, b uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE crm_pipeline_stages s
		SET sort_order = other.sort_order, updated_at = now()
		FROM crm_pipeline_stages other
		WHERE s.tenant_id = $1 AND other.tenant_id = $1
		  AND s.id IN ($2, $3) AND other.id IN ($2, $3)
		  AND s.id <> other.id
	`, tenantID, a, b)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 2 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func scanStage(row pgx.Row) (domain.Stage, error) {
	var stage domain.Stage
	var configBytes []byte
	err := row.Scan(
		&stage.ID, &stage.TenantID, &stage.Code, &stage.Name, &stage.SortOrder,
		&stage.IsClosedWon, &stage.IsClosedLost, &stage.IsSystem,
		&configBytes, &stage.CreatedAt, &stage.UpdatedAt,
	)
	if err != nil {
		return domain.Stage{}, err
	}
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &stage.Config); err != nil {
			return domain.Stage{}, err
		}
	}
	return stage, nil
}

func marshalConfig(config map[string]any) ([]byte, error) {
	if config == nil {
		return nil, nil
	}
	return json.Marshal(config)
}

var _ Store = (*Repository)(nil)
