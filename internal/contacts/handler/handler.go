package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sales_crm_backend/internal/authz"
	"sales_crm_backend/internal/contacts/service"
	"sales_crm_backend/internal/contacts/transport"
	"sales_crm_backend/platform/httpkit"
	"sales_crm_backend/platform/validator"
)

// Handler handles HTTP requests for contacts.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new contacts handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create adds a new contact owned by the caller.
// POST /api/v1/contacts
func (h *Handler) Create(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}

	var req transport.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	contact, err := h.svc.CreateContact(c.Request.Context(), principal, tenantID, service.CreateContactInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToContactResponse(contact))
}

// Get retrieves a single contact.
// GET /api/v1/contacts/:id
func (h *Handler) Get(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact ID", nil)
		return
	}

	contact, err := h.svc.GetContact(c.Request.Context(), principal, tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToContactResponse(contact))
}

// List retrieves the contacts visible to the caller.
// GET /api/v1/contacts
func (h *Handler) List(c *gin.Context) {
	principal, tenantID, ok := callerContext(c)
	if !ok {
		return
	}

	contacts, err := h.svc.ListContacts(c.Request.Context(), principal, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToContactListResponse(contacts))
}

func callerContext(c *gin.Context) (authz.Principal, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return authz.Principal{}, uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, "tenant not resolved", nil)
		return authz.Principal{}, uuid.Nil, false
	}
	return authz.Principal{ID: identity.UserID(), Roles: identity.Roles()}, tenantID, true
}
