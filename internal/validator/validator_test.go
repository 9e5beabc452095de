package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindQuestion(t *testing.T, body string) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req model.QuestionRequest
	return Bind(c, &req)
}

func TestBind_ValidQuestion(t *testing.T) {
	fields := bindQuestion(t, `{
		"subject": "Math", "prompt": "2+2?", "difficulty": "easy", "correct_option_index": 0,
		"options": [{"text":"4"},{"text":"3"},{"text":"5"},{"text":"6"}]
	}`)
	assert.Nil(t, fields)
}

func TestBind_RejectsUnknownDifficulty(t *testing.T) {
	fields := bindQuestion(t, `{
		"subject": "Math", "prompt": "2+2?", "difficulty": "brutal", "correct_option_index": 0,
		"options": [{"text":"4"},{"text":"3"},{"text":"5"},{"text":"6"}]
	}`)
	require.Contains(t, fields, "difficulty")
	assert.Contains(t, fields["difficulty"], "easy, medium, hard")
}

func TestBind_RequiresFourOptionsAndKey(t *testing.T) {
	fields := bindQuestion(t, `{
		"subject": "Math", "prompt": "2+2?", "difficulty": "hard",
		"options": [{"text":"4"},{"text":"3"}]
	}`)
	assert.Contains(t, fields, "options")
	assert.Contains(t, fields, "correct_option_index")
}

func TestBind_MalformedJSON(t *testing.T) {
	fields := bindQuestion(t, `{"subject":`)
	assert.Contains(t, fields, "detail")
}
