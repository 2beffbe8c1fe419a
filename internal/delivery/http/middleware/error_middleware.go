package middleware

import (
	"errors"
	"net/http"

	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				response.Error(c, appErr.Code, appErr.Message, nil)
			} else {
				// Never expose internal error details to clients. The
				// real error goes to the server log only.
				logger.Log.Error("unhandled request error",
					"request_id", requestIDFrom(c),
					"path", c.FullPath(),
					"error", err,
				)
				response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
			}
		}
	}
}
