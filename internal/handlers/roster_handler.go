package handlers

import (
	"net/http"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RosterHandler handles a care home's view of its workers
type RosterHandler struct {
	roster *services.RosterService
	logger logrus.FieldLogger
}

// NewRosterHandler creates a new roster handler
func NewRosterHandler(roster *services.RosterService, logger logrus.FieldLogger) *RosterHandler {
	return &RosterHandler{roster: roster, logger: logger}
}

// ListWorkers handles GET /api/v1/roster
func (h *RosterHandler) ListWorkers(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	workers, err := h.roster.ListWorkers(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers, "total": len(workers)})
}

// WorkerDetails handles GET /api/v1/roster/:workerId
func (h *RosterHandler) WorkerDetails(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	workerID, ok := pathID(c, "workerId")
	if !ok {
		return
	}

	details, err := h.roster.WorkerDetails(c.Request.Context(), id, workerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// SetCategory handles PUT /api/v1/roster/:workerId
func (h *RosterHandler) SetCategory(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	workerID, ok := pathID(c, "workerId")
	if !ok {
		return
	}
	var req models.SetRosterCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.roster.SetCategory(c.Request.Context(), id, workerID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
