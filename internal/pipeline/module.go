// Package pipeline provides the stage registry bounded context module.
package pipeline

import (
	"sales_crm_backend/internal/pipeline/handler"
	"sales_crm_backend/internal/pipeline/repository"
	"sales_crm_backend/internal/pipeline/service"
	apphttp "sales_crm_backend/internal/http"
	"sales_crm_backend/platform/logger"
	"sales_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the pipeline module with its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the stage registry to other modules (the deal transition
// coordinator validates targets through it).
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Reading the pipeline is available to every authenticated user.
	ctx.Protected.GET("/pipeline/stages", m.handler.List)

	// Stage administration is manager-only.
	adminGroup := ctx.Admin.Group("/pipeline/stages")
	adminGroup.POST("", m.handler.Create)
	adminGroup.PATCH("/:id", m.handler.Update)
	adminGroup.DELETE("/:id", m.handler.Delete)
	adminGroup.POST("/:id/reorder", m.handler.Reorder)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
