package handler

import (
	"context"
	"net/http"

	"ev-charging-api/internal/models"

	"github.com/gin-gonic/gin"
)

// TripHandler handles trip planning requests
type TripHandler struct {
	service TripPlanner
}

// TripPlanner interface for dependency injection
type TripPlanner interface {
	Plan(ctx context.Context, req models.TripRequest) (models.TripPlan, error)
}

// NewTripHandler creates a new trip handler
func NewTripHandler(svc TripPlanner) *TripHandler {
	return &TripHandler{service: svc}
}

// PlanTrip godoc
// @Summary      Stations along a route
// @Description  Resolves the driving route between origin and destination and returns up to 500 stations within bufferKm of it, in route order.
// @Tags         trips
// @Accept       json
// @Produce      json
// @Param        request  body      models.TripRequest  true  "Origin, destination and buffer in km (default 2)"
// @Success      200      {object}  models.TripPlan
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Failure      503      {object}  map[string]string
// @Router       /trip-planner [post]
func (h *TripHandler) PlanTrip(c *gin.Context) {
	var req models.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin and destination are required"})
		return
	}

	plan, err := h.service.Plan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
