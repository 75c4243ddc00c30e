package middleware

import (
	"net/http"

	"inputfeed/internal/transport/httpdto"
	"inputfeed/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last handler error as a JSON envelope when the
// handler has not written a body itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request %s failed: %s", c.GetString(RequestIDKey), err.Error())
		}
		if c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
