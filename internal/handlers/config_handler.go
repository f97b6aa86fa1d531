package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	apierrors "github.com/stwalsh4118/fieldtrack/internal/errors"
	"github.com/stwalsh4118/fieldtrack/internal/middleware"
	"github.com/stwalsh4118/fieldtrack/internal/services"
)

// JobParam is the route parameter naming a job.
const JobParam = "jobId"

// ConfigHandler serves a job's InfoBy category configuration.
type ConfigHandler struct {
	service services.InspectionService
}

// NewConfigHandler creates a new ConfigHandler instance.
func NewConfigHandler(service services.InspectionService) *ConfigHandler {
	return &ConfigHandler{service: service}
}

// BootstrapRequest is the body of the bootstrap endpoint. Without
// definitions the job's stored code file is scanned.
type BootstrapRequest struct {
	Vendor      string                 `json:"vendor" binding:"omitempty,oneof=BRT Microsystems brt microsystems"`
	Definitions []codes.CodeDefinition `json:"definitions" binding:"omitempty,dive"`
}

// ConfigResponse wraps a category configuration.
type ConfigResponse struct {
	Config codes.CategoryConfig `json:"config"`
}

// Get handles GET /api/v1/jobs/:jobId/category-config.
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.service.GetConfig(c.Request.Context(), c.Param(JobParam))
	if err != nil {
		respondError(c, err, "Failed to load category configuration")
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Config: cfg})
}

// Put handles PUT /api/v1/jobs/:jobId/category-config. Open sessions of the job are
// re-evaluated under the saved configuration.
func (h *ConfigHandler) Put(c *gin.Context) {
	var cfg codes.CategoryConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		apierrors.BindingError(c, "Invalid category configuration", err)
		return
	}

	saved, err := h.service.SaveConfig(c.Request.Context(), c.Param(JobParam), cfg)
	if err != nil {
		respondError(c, err, "Failed to save category configuration")
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Config: saved})
}

// Bootstrap handles POST /api/v1/jobs/:jobId/category-config/bootstrap.
func (h *ConfigHandler) Bootstrap(c *gin.Context) {
	var req BootstrapRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.BindingError(c, "Invalid bootstrap request", err)
			return
		}
	}

	var vendor codes.VendorDialect
	if req.Vendor != "" {
		v, err := codes.ParseVendor(req.Vendor)
		if err != nil {
			respondError(c, err, "Invalid vendor")
			return
		}
		vendor = v
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Bootstrapping category configuration", map[string]interface{}{
			"job_id":      c.Param(JobParam),
			"vendor":      vendor.String(),
			"definitions": len(req.Definitions),
		})
	}

	cfg, err := h.service.BootstrapConfig(c.Request.Context(), c.Param(JobParam), vendor, req.Definitions)
	if err != nil {
		respondError(c, err, "Failed to bootstrap category configuration")
		return
	}
	c.JSON(http.StatusCreated, ConfigResponse{Config: cfg})
}
