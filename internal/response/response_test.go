package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFail_RetryableCodes(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/persist", func(c *gin.Context) { Fail(c, http.StatusServiceUnavailable, ErrPersistFailure) })
	r.GET("/closed", func(c *gin.Context) { Fail(c, http.StatusConflict, ErrSessionClosed) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/persist", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrPersistFailure, body.Error.Code)
	assert.True(t, body.Error.Retryable)
	assert.Equal(t, "req-1", body.Metadata.RequestID)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/closed", nil))
	body = Response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Error.Retryable)
	assert.NotEmpty(t, body.Metadata.RequestID)
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, 3, NewPagination(1, 10, 21).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}
