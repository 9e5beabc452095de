package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// ResultHandler serves stored results to administrators.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// ListResults godoc
// GET /api/v1/admin/results
func (h *ResultHandler) ListResults(c *gin.Context) {
	var f model.ResultFilter
	if fields := validator.BindQuery(c, &f); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	f.Normalize()

	results, total, err := h.resultService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	if results == nil {
		results = []model.ResultSummary{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results},
		response.NewPagination(f.Page, f.PerPage, total))
}

// GetResult godoc
// GET /api/v1/admin/results/:id
// Includes the questions as served and the final answers.
func (h *ResultHandler) GetResult(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.resultService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
