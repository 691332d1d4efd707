// Package contacts provides the contact records bounded context module.
package contacts

import (
	"sales_crm_backend/internal/contacts/handler"
	"sales_crm_backend/internal/contacts/repository"
	"sales_crm_backend/internal/contacts/service"
	apphttp "sales_crm_backend/internal/http"
	"sales_crm_backend/internal/events"
	"sales_crm_backend/platform/logger"
	"sales_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contacts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the contacts module.
func NewModule(pool *pgxpool.Pool, notifier service.Notifier, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, notifier, bus, log)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contacts"
}

// RegisterRoutes mounts contact routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/contacts")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.POST("", m.handler.Create)
}

var _ apphttp.Module = (*Module)(nil)
