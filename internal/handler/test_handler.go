package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// TestHandler exposes the test taker's assessment over REST. Every route
// returns the updated session view so clients never track state themselves.
type TestHandler struct {
	assessment *service.AssessmentService
	results    *service.ResultService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(assessment *service.AssessmentService, results *service.ResultService) *TestHandler {
	return &TestHandler{assessment: assessment, results: results}
}

// Start godoc
// POST /api/v1/test/start
// Builds a new test or resumes the running one.
func (h *TestHandler) Start(c *gin.Context) {
	h.respond(c, http.StatusCreated, h.assessment.Start)
}

// State godoc
// GET /api/v1/test/state
func (h *TestHandler) State(c *gin.Context) {
	h.respond(c, http.StatusOK, h.assessment.State)
}

// SelectAnswer godoc
// PUT /api/v1/test/answer
func (h *TestHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	userID := middleware.GetClaims(c).UserID
	view, err := h.assessment.SelectAnswer(c.Request.Context(), userID, req.QuestionID, *req.OptionIndex)
	h.write(c, http.StatusOK, view, err)
}

// ToggleMark godoc
// PUT /api/v1/test/mark
func (h *TestHandler) ToggleMark(c *gin.Context) {
	var req model.ToggleMarkRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	userID := middleware.GetClaims(c).UserID
	view, err := h.assessment.ToggleMark(c.Request.Context(), userID, req.QuestionID)
	h.write(c, http.StatusOK, view, err)
}

// GoTo godoc
// PUT /api/v1/test/goto
func (h *TestHandler) GoTo(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	userID := middleware.GetClaims(c).UserID
	view, err := h.assessment.GoTo(c.Request.Context(), userID, *req.Index)
	h.write(c, http.StatusOK, view, err)
}

// Next godoc
// POST /api/v1/test/next
func (h *TestHandler) Next(c *gin.Context) {
	h.respond(c, http.StatusOK, h.assessment.Next)
}

// Previous godoc
// POST /api/v1/test/previous
func (h *TestHandler) Previous(c *gin.Context) {
	h.respond(c, http.StatusOK, h.assessment.Previous)
}

// Submit godoc
// POST /api/v1/test/submit
// Grades and stores the test. A PERSIST_FAILURE response is retryable: the
// test keeps running until the result is stored.
func (h *TestHandler) Submit(c *gin.Context) {
	userID := middleware.GetClaims(c).UserID
	report, err := h.assessment.Submit(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// Result godoc
// GET /api/v1/test/result
// Returns the caller's stored result.
func (h *TestHandler) Result(c *gin.Context) {
	userID := middleware.GetClaims(c).UserID
	summary, err := h.results.ForUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": summary})
}

type viewFunc func(ctx context.Context, userID int) (*engine.View, error)

func (h *TestHandler) respond(c *gin.Context, status int, fn viewFunc) {
	userID := middleware.GetClaims(c).UserID
	view, err := fn(c.Request.Context(), userID)
	h.write(c, status, view, err)
}

func (h *TestHandler) write(c *gin.Context, status int, view *engine.View, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, status, gin.H{"session": view})
}
