package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/pipeline/domain"
	"sales_crm_backend/internal/pipeline/service"
	"sales_crm_backend/internal/pipeline/transport"
	"sales_crm_backend/platform/httpkit"
	"sales_crm_backend/platform/validator"
)

// Handler handles HTTP requests for pipeline stage administration.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid stage ID"
	msgMissingTenant    = "tenant not resolved"
)

// New creates a new pipeline stage handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List retrieves all stages in pipeline order.
// GET /api/v1/pipeline/stages
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	stages, err := h.svc.ListOrdered(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStageListResponse(stages))
}

// Create adds a new stage (admin only).
// POST /api/v1/admin/pipeline/stages
func (h *Handler) Create(c *gin.Context) {
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stage, err := h.svc.CreateStage(c.Request.Context(), tenantID, service.CreateStageInput{
		Code:         req.Code,
		Name:         req.Name,
		SortOrder:    req.SortOrder,
		IsClosedWon:  req.IsClosedWon,
		IsClosedLost: req.IsClosedLost,
		Config:       req.Config,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToStageResponse(stage))
}

// Update patches an existing stage (admin only).
// PATCH /api/v1/admin/pipeline/stages/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	// Reject attempts to touch immutable fields explicitly so callers get a
	// clear message instead of a silently dropped field.
	var probe map[string]any
	if err := c.ShouldBindBodyWithJSON(&probe); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if _, found := probe["code"]; found {
		httpkit.Error(c, http.StatusBadRequest, "stage code is immutable", nil)
		return
	}
	if _, found := probe["isSystem"]; found {
		httpkit.Error(c, http.StatusBadRequest, "isSystem cannot be changed", nil)
		return
	}

	var req transport.UpdateStageRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	_, configSet := probe["config"]
	stage, err := h.svc.UpdateStage(c.Request.Context(), tenantID, id, service.UpdateStageInput{
		Name:         req.Name,
		SortOrder:    req.SortOrder,
		IsClosedWon:  req.IsClosedWon,
		IsClosedLost: req.IsClosedLost,
		Config:       req.Config,
		ConfigSet:    configSet,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStageResponse(stage))
}

// Delete removes a stage (admin only).
// DELETE /api/v1/admin/pipeline/stages/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteStage(c.Request.Context(), principal, tenantID, id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Reorder moves a stage one position up or down (admin only).
// POST /api/v1/admin/pipeline/stages/:id/reorder
func (h *Handler) Reorder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.ReorderStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	stages, err := h.svc.Reorder(c.Request.Context(), tenantID, id, domain.Direction(req.Direction))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStageListResponse(stages))
}

func mustGetTenantID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, msgMissingTenant, nil)
		return uuid.Nil, false
	}
	return tenantID, true
}

func callerContext(c *gin.Context) (authz.Principal, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return authz.Principal{}, uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, msgMissingTenant, nil)
		return authz.Principal{}, uuid.Nil, false
	}
	return authz.Principal{ID: identity.UserID(), Roles: identity.Roles()}, tenantID, true
}
