package handlers

import (
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LocationHandler struct {
	locations *services.LocationService
	log       *zap.Logger
}

func NewLocationHandler(locations *services.LocationService, log *zap.Logger) *LocationHandler {
	return &LocationHandler{locations: locations, log: log}
}

// Record POST /api/location
func (h *LocationHandler) Record(c *gin.Context) {
	var in services.LocationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	ping, err := h.locations.Record(c.Request.Context(), middleware.CurrentActor(c), in, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": ping.ID})
}

// List GET /api/admin/locations
func (h *LocationHandler) List(c *gin.Context) {
	items, err := h.locations.List(c.Request.Context(), middleware.CurrentActor(c), utils.ClampLimit(c.Query("limit"), 100, 1000))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": items})
}
