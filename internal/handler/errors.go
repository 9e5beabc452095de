package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// errorMapping pairs a domain error with its API status and code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// domainErrors is checked in order with errors.Is. ErrPersistFailure comes
// first because it wraps the underlying cause.
var domainErrors = []errorMapping{
	{engine.ErrPersistFailure, http.StatusServiceUnavailable, response.ErrPersistFailure},
	{engine.ErrAlreadyCompleted, http.StatusConflict, response.ErrAlreadyCompleted},
	{engine.ErrSessionClosed, http.StatusConflict, response.ErrSessionClosed},
	{engine.ErrInvalidOption, http.StatusBadRequest, response.ErrInvalidOption},
	{engine.ErrUnknownQuestion, http.StatusNotFound, response.ErrUnknownQuestion},
	{engine.ErrOutOfRange, http.StatusBadRequest, response.ErrOutOfRange},
	{engine.ErrInsufficientQuestions, http.StatusUnprocessableEntity, response.ErrInsufficientQuestions},
	{engine.ErrEmptyQuestionSource, http.StatusUnprocessableEntity, response.ErrEmptyQuestionSource},
	{engine.ErrInvalidQuestion, http.StatusBadRequest, response.ErrValidation},
	{service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	{service.ErrSessionActiveElsewhere, http.StatusConflict, response.ErrSessionActiveElsewhere},
	{service.ErrShuttingDown, http.StatusServiceUnavailable, response.ErrShuttingDown},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrSessionInvalidated, http.StatusUnauthorized, response.ErrSessionInvalidated},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrConflict},
	{service.ErrUserNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrNotFound},
}

// classify maps err to an API status and code. Unknown errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the error response for err. Server-side failures are attached
// to the context for the request logger.
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}
