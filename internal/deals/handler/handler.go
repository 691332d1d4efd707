package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/deals/coordinator"
	"sales_crm_backend/internal/deals/transport"
	"sales_crm_backend/platform/httpkit"
	"sales_crm_backend/platform/validator"
)

// Handler handles HTTP requests for deals and stage transitions.
type Handler struct {
	coord *coordinator.Coordinator
	val   *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid deal ID"
	msgMissingTenant    = "tenant not resolved"
)

// New creates a new deals handler.
func New(coord *coordinator.Coordinator, val *validator.Validator) *Handler {
	return &Handler{coord: coord, val: val}
}

// List retrieves the deals visible to the caller.
// GET /api/v1/deals
func (h *Handler) List(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}

	deals, err := h.coord.ListDeals(c.Request.Context(), principal, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDealListResponse(deals))
}

// Get retrieves a single deal.
// GET /api/v1/deals/:id
func (h *Handler) Get(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	deal, err := h.coord.GetDeal(c.Request.Context(), principal, tenantID, dealID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDealResponse(deal))
}

// Transition moves a deal to another pipeline stage.
// POST /api/v1/deals/:id/transition
//
// Policy and validation outcomes are reported in the response status
// field with a 200, not as HTTP errors; only infrastructure failures
// map to error codes.
func (h *Handler) Transition(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	toStageID, err := uuid.Parse(req.ToStageID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, "toStageId must be a UUID")
		return
	}

	res, err := h.coord.RequestTransition(c.Request.Context(), principal, tenantID, dealID, toStageID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTransitionResponse(res))
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
	principal := authz.Principal{ID: identity.UserID(), Roles: identity.Roles()}
	return principal, tenantID, true
}
