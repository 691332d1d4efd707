package webhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfigStore persists per-tenant webhook configuration.
type ConfigStore interface {
	// GetConfig returns nil when the tenant has no webhook configured.
	GetConfig(ctx context.Context, tenantID uuid.UUID) (*Config, error)
	PutConfig(ctx context.Context, cfg Config) (Config, error)
}

type pgConfigStore struct {
	pool *pgxpool.Pool
}

// NewConfigStore creates the pgx-backed config store.
func NewConfigStore(pool *pgxpool.Pool) ConfigStore {
	return &pgConfigStore{pool: pool}
}

func (s *pgConfigStore) GetConfig(ctx context.Context, tenantID uuid.UUID) (*Config, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, destination_url, secret, enabled_events, is_enabled, created_at, updated_at
		FROM crm_webhook_configs
		WHERE tenant_id = $1
	`, tenantID)

	var cfg Config
	err := row.Scan(&cfg.TenantID, &cfg.DestinationURL, &cfg.Secret,
		&cfg.EnabledEvents, &cfg.IsEnabled, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *pgConfigStore) PutConfig(ctx context.Context, cfg Config) (Config, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO crm_webhook_configs (tenant_id, destination_url, secret, enabled_events, is_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			destination_url = EXCLUDED.destination_url,
			secret = EXCLUDED.secret,
			enabled_events = EXCLUDED.enabled_events,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = now()
		RETURNING tenant_id, destination_url, secret, enabled_events, is_enabled, created_at, updated_at
	`, cfg.TenantID, cfg.DestinationURL, cfg.Secret, cfg.EnabledEvents, cfg.IsEnabled)

	var saved Config
	err := row.Scan(&saved.TenantID, &saved.DestinationURL, &saved.Secret,
		&saved.EnabledEvents, &saved.IsEnabled, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return Config{}, err
	}
	return saved, nil
}
