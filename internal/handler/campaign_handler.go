package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/pkg/response"
)

// CampaignHandler handles the public, unauthenticated browse endpoints.
type CampaignHandler struct {
	service *application.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler.
func NewCampaignHandler(service *application.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// RegisterRoutes registers the campaign browse routes on the given router group.
func (h *CampaignHandler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.GET("", h.ListOpenCampaigns)
		campaigns.GET("/:slug", h.GetCampaign)
	}
}

// ListOpenCampaigns handles GET /api/v1/campaigns
func (h *CampaignHandler) ListOpenCampaigns(c *gin.Context) {
	dtos, err := h.service.ListOpenCampaigns(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// GetCampaign handles GET /api/v1/campaigns/:slug
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	dto, err := h.service.GetCampaignBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
