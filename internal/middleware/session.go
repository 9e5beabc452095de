package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// CheckSingleDeviceSession validates the JWT's JTI against the user's current
// login in Redis. A newer login elsewhere invalidates older tokens.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforced for test takers.
		if claims.Role != model.RoleUser {
			c.Next()
			return
		}

		err := authService.ValidateUserSession(c.Request.Context(), claims.UserID, claims.ID)
		switch {
		case errors.Is(err, service.ErrSessionInvalidated):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		case err != nil:
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Next()
	}
}
