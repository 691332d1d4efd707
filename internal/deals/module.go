// Package deals provides the deal transition bounded context module.
package deals

import (
	"sales_crm_backend/internal/deals/coordinator"
	"sales_crm_backend/internal/deals/handler"
	"sales_crm_backend/internal/deals/repository"
	apphttp "sales_crm_backend/internal/http"
	"sales_crm_backend/internal/events"
	"sales_crm_backend/platform/logger"
	"sales_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the deals bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	coord   *coordinator.Coordinator
}

// NewModule wires the deal repository and transition coordinator. The stage
// registry and webhook notifier come from their owning modules.
func NewModule(pool *pgxpool.Pool, stages coordinator.StageRegistry, notifier coordinator.Notifier, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	coord := coordinator.New(repo, stages, notifier, bus, log)
	h := handler.New(coord, val)

	return &Module{
		handler: h,
		coord:   coord,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "deals"
}

// RegisterRoutes mounts deal routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/deals")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.POST("/:id/transition", m.handler.Transition)
}

var _ apphttp.Module = (*Module)(nil)
