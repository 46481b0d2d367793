package handlers

import (
	"net/http"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IncidentHandler handles a care home's incident reports
type IncidentHandler struct {
	incidents *services.IncidentService
	logger    logrus.FieldLogger
}

// NewIncidentHandler creates a new incident handler
func NewIncidentHandler(incidents *services.IncidentService, logger logrus.FieldLogger) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, logger: logger}
}

// Report handles POST /api/v1/incidents
func (h *IncidentHandler) Report(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.ReportIncidentRequest
	if !bindJSON(c, &req) {
		return
	}

	incident, err := h.incidents.Report(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, incident)
}

// List handles GET /api/v1/incidents?search=
func (h *IncidentHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	board, err := h.incidents.List(c.Request.Context(), id, c.Query("search"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// Get handles GET /api/v1/incidents/:id
func (h *IncidentHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	incidentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	incident, err := h.incidents.Get(c.Request.Context(), id, incidentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

// Close handles PUT /api/v1/incidents/:id/status
func (h *IncidentHandler) Close(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	incidentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.CloseIncidentRequest
	if !bindJSON(c, &req) {
		return
	}

	incident, err := h.incidents.Close(c.Request.Context(), id, incidentID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

// FollowUp handles PUT /api/v1/incidents/:id/follow-up
func (h *IncidentHandler) FollowUp(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	incidentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.FollowUpRequest
	if !bindJSON(c, &req) {
		return
	}

	incident, err := h.incidents.FollowUp(c.Request.Context(), id, incidentID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}
