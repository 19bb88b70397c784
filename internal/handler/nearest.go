package handler

import (
	"context"
	"net/http"

	"ev-charging-api/internal/models"

	"github.com/gin-gonic/gin"
)

// NearestHandler handles nearest-station requests
type NearestHandler struct {
	service NearbyService
}

// NearbyService interface for dependency injection
type NearbyService interface {
	NearestStations(ctx context.Context, lat, lon, maxDistance float64) ([]models.StationView, error)
}

// NewNearestHandler creates a new nearest-station handler
func NewNearestHandler(svc NearbyService) *NearestHandler {
	return &NearestHandler{service: svc}
}

// NearestStations godoc
// @Summary      Nearest stations
// @Description  Up to 25 stations within maxDistance metres, closest first.
// @Tags         stations
// @Produce      json
// @Param        lat          query     number  true   "Latitude"
// @Param        lon          query     number  true   "Longitude"
// @Param        maxDistance  query     number  false  "Search radius in metres"  default(25000)
// @Success      200          {array}   models.StationView
// @Failure      400          {object}  map[string]string
// @Failure      500          {object}  map[string]string
// @Router       /nearest-stations [get]
func (h *NearestHandler) NearestStations(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameters 'lat' and 'lon'"})
		return
	}

	lat, err := parseFinite(latStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude format"})
		return
	}

	lon, err := parseFinite(lonStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude format"})
		return
	}

	var maxDistance float64
	if raw := c.Query("maxDistance"); raw != "" {
		if maxDistance, err = parseFinite(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid maxDistance format"})
			return
		}
	}

	stations, err := h.service.NearestStations(c.Request.Context(), lat, lon, maxDistance)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stations)
}
