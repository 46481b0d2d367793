package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IdempotencyKeyHeader lets clients retry a shift post without duplicating it
const IdempotencyKeyHeader = "Idempotency-Key"

// ShiftHandler handles shift lifecycle requests
type ShiftHandler struct {
	shifts *services.ShiftService
	logger logrus.FieldLogger
}

// NewShiftHandler creates a new shift handler
func NewShiftHandler(shifts *services.ShiftService, logger logrus.FieldLogger) *ShiftHandler {
	return &ShiftHandler{shifts: shifts, logger: logger}
}

// Post handles POST /api/v1/shifts. A replayed Idempotency-Key answers 200
// with the shift created the first time.
func (h *ShiftHandler) Post(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.PostShiftRequest
	if !bindJSON(c, &req) {
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	shift, created, err := h.shifts.Post(c.Request.Context(), id, req, key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, shift)
}

// PostRecurring handles POST /api/v1/shifts/recurring
func (h *ShiftHandler) PostRecurring(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.PostRecurringShiftRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.shifts.PostRecurring(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// List handles GET /api/v1/shifts. Care homes get their board, workers get
// available, own and upcoming shifts.
func (h *ShiftHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	board, err := listShifts(c, h.shifts, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func listShifts(c *gin.Context, shifts *services.ShiftService, id models.Identity) (interface{}, error) {
	if id.IsCareHome() {
		return shifts.ListForCareHome(c.Request.Context(), id)
	}
	return shifts.ListForWorker(c.Request.Context(), id)
}

// Overview handles GET /api/v1/shifts/overview
func (h *ShiftHandler) Overview(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	overview, err := h.shifts.Overview(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Get handles GET /api/v1/shifts/:id
func (h *ShiftHandler) Get(c *gin.Context) {
	h.act(c, h.shifts.Get)
}

// Apply handles POST /api/v1/shifts/:id/apply
func (h *ShiftHandler) Apply(c *gin.Context) {
	h.act(c, h.shifts.Apply)
}

// Withdraw handles POST /api/v1/shifts/:id/withdraw
func (h *ShiftHandler) Withdraw(c *gin.Context) {
	h.act(c, h.shifts.Withdraw)
}

// Approve handles POST /api/v1/shifts/:id/approve
func (h *ShiftHandler) Approve(c *gin.Context) {
	h.act(c, h.shifts.Approve)
}

// Reject handles POST /api/v1/shifts/:id/reject
func (h *ShiftHandler) Reject(c *gin.Context) {
	h.act(c, h.shifts.Reject)
}

// Complete handles POST /api/v1/shifts/:id/complete
func (h *ShiftHandler) Complete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.shifts.Complete(c.Request.Context(), id, shiftID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// act runs a single-shift operation named by the :id path parameter
func (h *ShiftHandler) act(c *gin.Context, op func(context.Context, models.Identity, uuid.UUID) (*models.Shift, error)) {
	id, ok := identity(c)
	if !ok {
		return
	}
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}

	shift, err := op(c.Request.Context(), id, shiftID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}
