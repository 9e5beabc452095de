package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// Register godoc
// POST /api/v1/auth/register
// Creates a test taker account and returns a token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// Login godoc
// POST /api/v1/auth/login
// Authenticates by email and password. A new login signs out the previous
// device of the same test taker.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Logout godoc
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if claims.Role == model.RoleUser {
		if err := h.authService.Logout(c.Request.Context(), claims.UserID); err != nil {
			fail(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Signed out"})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the signed-in account.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	profile, err := h.userService.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"profile": profile})
}
