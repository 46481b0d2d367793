package handlers

import (
	"net/http"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles registration, sign-in, session and profile requests
type AuthHandler struct {
	auth   *services.AuthService
	logger logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RegisterCareHome handles POST /api/v1/auth/care-home/register
func (h *AuthHandler) RegisterCareHome(c *gin.Context) {
	var req models.RegisterCareHomeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.RegisterCareHome(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RegisterWorker handles POST /api/v1/auth/worker/register
func (h *AuthHandler) RegisterWorker(c *gin.Context) {
	var req models.RegisterWorkerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.RegisterWorker(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// SignIn returns the sign-in handler for one role, e.g.
// POST /api/v1/auth/care-home/sign-in
func (h *AuthHandler) SignIn(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SignInRequest
		if !bindJSON(c, &req) {
			return
		}

		tokens, err := h.auth.SignIn(c.Request.Context(), role, req, clientInfo(c))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

// RefreshToken handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// SignOut handles POST /api/v1/auth/sign-out
func (h *AuthHandler) SignOut(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

// ChangePassword handles PUT /api/v1/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), id, req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. Other sessions have been signed out."})
}

// GetSession handles GET /api/v1/auth/session
func (h *AuthHandler) GetSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, id)
}

// GetProfile handles GET /api/v1/profile for either role
func (h *AuthHandler) GetProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var (
		profile interface{}
		err     error
	)
	if id.IsCareHome() {
		profile, err = h.auth.CareHomeProfile(c.Request.Context(), id)
	} else {
		profile, err = h.auth.WorkerProfile(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/profile for either role
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var (
		profile interface{}
		err     error
	)
	if id.IsCareHome() {
		var req models.UpdateCareHomeProfileRequest
		if !bindJSON(c, &req) {
			return
		}
		profile, err = h.auth.UpdateCareHomeProfile(c.Request.Context(), id, req)
	} else {
		var req models.UpdateWorkerProfileRequest
		if !bindJSON(c, &req) {
			return
		}
		profile, err = h.auth.UpdateWorkerProfile(c.Request.Context(), id, req)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
