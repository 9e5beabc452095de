package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// QuestionHandler handles question bank management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/v1/admin/questions
// Lists the question bank, filtered and paginated.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var f model.QuestionFilter
	if fields := validator.BindQuery(c, &f); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	f.Normalize()

	questions, total, err := h.questionService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}

	if questions == nil {
		questions = []model.QuestionRecord{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions},
		response.NewPagination(f.Page, f.PerPage, total))
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := parseUUID(c)
	if !ok {
		return
	}

	question, err := h.questionService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
// Replaces a question. Tests already running keep the version they drew.
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, ok := parseUUID(c)
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := parseUUID(c)
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Question deleted"})
}

// ListSubjects godoc
// GET /api/v1/admin/questions/subjects
func (h *QuestionHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.questionService.Subjects(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subjects": subjects})
}

func parseUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
