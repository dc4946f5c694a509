package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/pkg/auth"
	"github.com/flashmart/service-flashsale/pkg/middleware"
	"github.com/flashmart/service-flashsale/pkg/response"
)

// ReservationHandler handles HTTP requests for reservation operations.
type ReservationHandler struct {
	service *application.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(service *application.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

// RegisterRoutes registers all reservation routes on the given router group.
func (h *ReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	reservations := r.Group("/reservations")
	reservations.Use(middleware.AuthMiddleware(jwtManager))
	{
		reservations.POST("", h.CreateReservation)
		reservations.GET("", h.ListMyReservations)
		reservations.GET("/:id/validate", h.ValidateReservation)
		reservations.POST("/:id/confirm", h.ConfirmReservation)
		reservations.POST("/:id/cancel", h.CancelReservation)
	}
}

// CreateReservation handles POST /api/v1/reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateReservation(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListMyReservations handles GET /api/v1/reservations
func (h *ReservationHandler) ListMyReservations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var campaignID *uuid.UUID
	if raw := c.Query("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid campaign ID")
			return
		}
		campaignID = &id
	}

	dtos, err := h.service.GetUserReservations(c.Request.Context(), userID, campaignID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// ValidateReservation handles GET /api/v1/reservations/:id/validate
func (h *ReservationHandler) ValidateReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return
	}

	dto, err := h.service.ValidateReservation(c.Request.Context(), reservationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ConfirmReservation handles POST /api/v1/reservations/:id/confirm
func (h *ReservationHandler) ConfirmReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.ConfirmReservation(c.Request.Context(), reservationID, req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// CancelReservation handles POST /api/v1/reservations/:id/cancel
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return
	}

	dto, err := h.service.CancelReservation(c.Request.Context(), reservationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
