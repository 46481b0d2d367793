package handlers

import (
	"net/http"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PayslipHandler handles payslip requests
type PayslipHandler struct {
	payslips *services.PayslipService
	logger   logrus.FieldLogger
}

// NewPayslipHandler creates a new payslip handler
func NewPayslipHandler(payslips *services.PayslipService, logger logrus.FieldLogger) *PayslipHandler {
	return &PayslipHandler{payslips: payslips, logger: logger}
}

// Issue handles POST /api/v1/payslips
func (h *PayslipHandler) Issue(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.IssuePayslipRequest
	if !bindJSON(c, &req) {
		return
	}

	payslip, err := h.payslips.Issue(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, payslip)
}

// List handles GET /api/v1/payslips
func (h *PayslipHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	payslips, err := h.payslips.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payslips": payslips, "total": len(payslips)})
}

// Get handles GET /api/v1/payslips/:id
func (h *PayslipHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	payslipID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payslip, err := h.payslips.Get(c.Request.Context(), id, payslipID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payslip)
}
