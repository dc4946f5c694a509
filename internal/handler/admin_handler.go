package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/internal/scheduler"
	"github.com/flashmart/service-flashsale/pkg/auth"
	"github.com/flashmart/service-flashsale/pkg/middleware"
	"github.com/flashmart/service-flashsale/pkg/response"
)

// AdminHandler handles campaign management and operational endpoints.
// Every route requires the admin role.
type AdminHandler struct {
	campaignService    *application.CampaignService
	reservationService *application.ReservationService
	scheduler          *scheduler.ActivationScheduler
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	campaignService *application.CampaignService,
	reservationService *application.ReservationService,
	sched *scheduler.ActivationScheduler,
) *AdminHandler {
	return &AdminHandler{
		campaignService:    campaignService,
		reservationService: reservationService,
		scheduler:          sched,
	}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager))
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/campaigns", h.CreateCampaign)
		admin.POST("/campaigns/:id/cancel", h.CancelCampaign)
		admin.POST("/campaigns/:id/products", h.AddProduct)
		admin.POST("/tasks/run", h.RunSchedulerPass)
		admin.POST("/reservations/cleanup", h.CleanupReservations)
		admin.GET("/stats/reservations", h.ReservationStats)
	}
}

// CreateCampaign handles POST /api/v1/admin/campaigns
func (h *AdminHandler) CreateCampaign(c *gin.Context) {
	var req application.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.campaignService.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// CancelCampaign handles POST /api/v1/admin/campaigns/:id/cancel
func (h *AdminHandler) CancelCampaign(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid campaign ID")
		return
	}

	dto, err := h.campaignService.CancelCampaign(c.Request.Context(), campaignID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// AddProduct handles POST /api/v1/admin/campaigns/:id/products
func (h *AdminHandler) AddProduct(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid campaign ID")
		return
	}

	var req application.AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.campaignService.AddProduct(c.Request.Context(), campaignID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// RunSchedulerPass handles POST /api/v1/admin/tasks/run. It triggers one
// activation pass immediately instead of waiting for the next tick.
func (h *AdminHandler) RunSchedulerPass(c *gin.Context) {
	result, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CleanupReservations handles POST /api/v1/admin/reservations/cleanup
func (h *AdminHandler) CleanupReservations(c *gin.Context) {
	result, err := h.reservationService.CleanupExpiredReservations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReservationStats handles GET /api/v1/admin/stats/reservations
func (h *AdminHandler) ReservationStats(c *gin.Context) {
	stats, err := h.campaignService.GetReservationStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
