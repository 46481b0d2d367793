package handlers

import (
	"net/http"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TimesheetHandler handles timesheet requests
type TimesheetHandler struct {
	timesheets *services.TimesheetService
	logger     logrus.FieldLogger
}

// NewTimesheetHandler creates a new timesheet handler
func NewTimesheetHandler(timesheets *services.TimesheetService, logger logrus.FieldLogger) *TimesheetHandler {
	return &TimesheetHandler{timesheets: timesheets, logger: logger}
}

// List handles GET /api/v1/timesheets
func (h *TimesheetHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	board, err := listTimesheets(c, h.timesheets, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func listTimesheets(c *gin.Context, timesheets *services.TimesheetService, id models.Identity) (*models.TimesheetBoard, error) {
	if id.IsCareHome() {
		return timesheets.ListForCareHome(c.Request.Context(), id)
	}
	return timesheets.ListForWorker(c.Request.Context(), id)
}

// Get handles GET /api/v1/timesheets/:id
func (h *TimesheetHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	sheetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sheet, err := h.timesheets.Get(c.Request.Context(), id, sheetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// Sign handles POST /api/v1/timesheets/:id/sign
func (h *TimesheetHandler) Sign(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	sheetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sheet, err := h.timesheets.Sign(c.Request.Context(), id, sheetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// Review handles POST /api/v1/timesheets/:id/review
func (h *TimesheetHandler) Review(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	sheetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.ReviewTimesheetRequest
	if !bindJSON(c, &req) {
		return
	}

	sheet, err := h.timesheets.Review(c.Request.Context(), id, sheetID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}
