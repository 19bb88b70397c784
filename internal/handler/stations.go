package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"ev-charging-api/internal/models"
	"ev-charging-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// StationHandler handles station listing requests
type StationHandler struct {
	service StationService
}

// StationService interface for dependency injection
type StationService interface {
	ListAll(context.Context, models.Page) ([]models.StationView, error)
	FindStations(context.Context, models.StationFilter) ([]models.StationView, error)
}

// NewStationHandler creates a new station handler
func NewStationHandler(svc StationService) *StationHandler {
	return &StationHandler{service: svc}
}

// Root godoc
// @Summary      Liveness message
// @Tags         meta
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       / [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "EV Charger API is running"})
}

// AllStations godoc
// @Summary      List every station
// @Description  Returns id, name, coordinates, address, provider and source of every stored station.
// @Tags         stations
// @Produce      json
// @Param        skip   query     int  false  "Rows to skip"
// @Param        limit  query     int  false  "Maximum rows (at most 2000)"
// @Success      200    {array}   models.StationView
// @Failure      400    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /all-stations [get]
func (h *StationHandler) AllStations(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	stations, err := h.service.ListAll(c.Request.Context(), models.Page{Skip: skip, Limit: limit})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stations)
}

// Stations godoc
// @Summary      Filter stations
// @Description  Exact-match provider and source filters plus a ±0.1° box around lat/lon.
// @Tags         stations
// @Produce      json
// @Param        provider  query     string  false  "Operator label"
// @Param        source    query     string  false  "Source tag"  Enums(GooglePlacesV1, OpenChargeMap, StatiqScrape, BEE)
// @Param        lat       query     number  false  "Latitude, requires lon"
// @Param        lon       query     number  false  "Longitude, requires lat"
// @Param        limit     query     int     false  "Maximum rows, 1 to 1000"  default(50)
// @Success      200       {array}   models.StationView
// @Failure      400       {object}  map[string]string
// @Failure      500       {object}  map[string]string
// @Router       /stations [get]
func (h *StationHandler) Stations(c *gin.Context) {
	filter := models.StationFilter{
		Provider: c.Query("provider"),
		Source:   models.Source(c.Query("source")),
	}

	var ok bool
	if filter.Lat, ok = queryFloatPtr(c, "lat"); !ok {
		return
	}
	if filter.Lon, ok = queryFloatPtr(c, "lon"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit", models.DefaultStationLimit); !ok {
		return
	}

	stations, err := h.service.FindStations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stations)
}

// respondError maps service errors to the JSON error body.
func respondError(c *gin.Context, err error) {
	if eris.Is(err, service.ErrInvalidArgument) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if eris.Is(err, service.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("handler: request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " format"})
		return 0, false
	}
	return v, true
}

func queryFloatPtr(c *gin.Context, name string) (*float64, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := parseFinite(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " format"})
		return nil, false
	}
	return &v, true
}

// parseFinite parses a float and refuses NaN and infinities, which
// strconv.ParseFloat accepts.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("handler: %q is not a finite number", raw)
	}
	return v, nil
}
