package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sales_crm_backend/platform/httpkit"
	"sales_crm_backend/platform/validator"
)

// ConfigRequest is the admin payload for configuring a tenant's webhook.
type ConfigRequest struct {
	DestinationURL string   `json:"destinationUrl" validate:"required,url"`
	Secret         string   `json:"secret" validate:"omitempty,min=16"`
	EnabledEvents  []string `json:"enabledEvents" validate:"omitempty,dive,oneof=deal.closed_won contact.created"`
	IsEnabled      bool     `json:"isEnabled"`
}

// ConfigResponse mirrors the stored config. The secret is never echoed
// back; only its presence is reported.
type ConfigResponse struct {
	DestinationURL string    `json:"destinationUrl"`
	HasSecret      bool      `json:"hasSecret"`
	EnabledEvents  []string  `json:"enabledEvents"`
	IsEnabled      bool      `json:"isEnabled"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Handler exposes the admin webhook config endpoints.
type Handler struct {
	configs ConfigStore
	val     *validator.Validator
}

// NewHandler creates a webhook config handler.
func NewHandler(configs ConfigStore, val *validator.Validator) *Handler {
	return &Handler{configs: configs, val: val}
}

// GetConfig returns the tenant's webhook configuration.
// GET /api/v1/admin/webhooks/config
func (h *Handler) GetConfig(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	cfg, err := h.configs.GetConfig(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	if cfg == nil {
		httpkit.Error(c, http.StatusNotFound, "no webhook configured", nil)
		return
	}
	httpkit.OK(c, toConfigResponse(*cfg))
}

// PutConfig creates or replaces the tenant's webhook configuration.
// PUT /api/v1/admin/webhooks/config
func (h *Handler) PutConfig(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	saved, err := h.configs.PutConfig(c.Request.Context(), Config{
		TenantID:       tenantID,
		DestinationURL: req.DestinationURL,
		Secret:         req.Secret,
		EnabledEvents:  req.EnabledEvents,
		IsEnabled:      req.IsEnabled,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConfigResponse(saved))
}

func toConfigResponse(cfg Config) ConfigResponse {
	events := cfg.EnabledEvents
	if events == nil {
		events = []string{}
	}
	return ConfigResponse{
		DestinationURL: cfg.DestinationURL,
		HasSecret:      cfg.Secret != "",
		EnabledEvents:  events,
		IsEnabled:      cfg.IsEnabled,
		UpdatedAt:      cfg.UpdatedAt,
	}
}

func tenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, "tenant not resolved", nil)
		return uuid.Nil, false
	}
	return tenantID, true
}
