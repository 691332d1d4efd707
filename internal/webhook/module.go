package webhook

import (
	apphttp "sales_crm_backend/internal/http"
	"sales_crm_backend/platform/logger"
	"sales_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler  *Handler
	notifier *Notifier
	configs  ConfigStore
}

// NewModule creates the webhook module. enqueuer may be nil to run
// deliveries in-process instead of through the task queue.
func NewModule(pool *pgxpool.Pool, enqueuer Enqueuer, deliverer *Deliverer, val *validator.Validator, log *logger.Logger) *Module {
	configs := NewConfigStore(pool)
	return &Module{
		handler:  NewHandler(configs, val),
		notifier: NewNotifier(configs, enqueuer, deliverer, log),
		configs:  configs,
	}
}

// Notifier exposes the outbound notifier to event-producing modules.
func (m *Module) Notifier() *Notifier {
	return m.notifier
}

// ConfigStore exposes the config store to the delivery worker.
func (m *Module) ConfigStore() ConfigStore {
	return m.configs
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the admin webhook config routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/webhooks")
	group.GET("/config", m.handler.GetConfig)
	group.PUT("/config", m.handler.PutConfig)
}

var _ apphttp.Module = (*Module)(nil)
