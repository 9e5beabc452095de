package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	resultService *service.ResultService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(resultService *service.ResultService) *DashboardHandler {
	return &DashboardHandler{resultService: resultService}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Returns registration and result figures plus the number of running tests.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.resultService.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}
