package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/carelink/shift-portal/internal/middleware"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/internal/utils"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Fields  []validator.FieldError `json:"fields,omitempty"`
}

// respondError maps a service error onto a status and error body. Anything
// unrecognised is logged and reported as a generic 500.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var verr *services.ValidationError
	var rerr *services.RateLimitError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "One or more fields are invalid",
			Code:    "VALIDATION_FAILED",
			Fields:  verr.Fields,
		})
	case errors.As(err, &rerr):
		retry := int(math.Ceil(time.Until(rerr.RetryAfter).Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "too_many_attempts",
			Message: rerr.Message,
			Code:    "TOO_MANY_ATTEMPTS",
		})
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Please sign in again",
			Code:    "UNAUTHENTICATED",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
			Code:    "INVALID_CREDENTIALS",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "You don't have permission to access this resource",
			Code:    "INSUFFICIENT_PERMISSIONS",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Resource not found",
			Code:    "NOT_FOUND",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "The record was changed by someone else. Refresh and try again.",
			Code:    "STATE_CONFLICT",
		})
	case errors.Is(err, services.ErrUnsigned):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "timesheet_unsigned",
			Message: "The worker must sign the timesheet before it can be approved",
			Code:    "TIMESHEET_UNSIGNED",
		})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "email_taken",
			Message: "An account with this email already exists",
			Code:    "EMAIL_TAKEN",
		})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong. Please try again.",
		})
	}
}

// bindJSON decodes the body into req, answering 400 itself on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
			Code:    "INVALID_JSON",
		})
		return false
	}
	return true
}

// pathID parses a UUID path parameter, answering 404 itself when it is malformed
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Resource not found",
			Code:    "NOT_FOUND",
		})
		return uuid.Nil, false
	}
	return id, true
}

// identity returns the signed-in identity, answering 401 itself when there is none
func identity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
			Code:    "UNAUTHENTICATED",
		})
		return models.Identity{}, false
	}
	return id, true
}

// clientInfo describes the calling device for sessions and audit entries
func clientInfo(c *gin.Context) models.ClientInfo {
	ua := utils.GetUserAgent(c)
	device := utils.ParseUserAgent(ua)
	return models.ClientInfo{
		IPAddress:  utils.GetRealIP(c),
		UserAgent:  ua,
		DeviceType: device.DeviceType,
		Browser:    device.Browser,
	}
}
