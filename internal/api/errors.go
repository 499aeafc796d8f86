package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicedash/internal/apperr"
)

// envelope is the body of every successful JSON response except health.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

// abortWithError hands err to the error middleware.
func abortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// errorMiddleware turns the last handler error into an envelope. It is the
// only place errors become status codes.
func errorMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status := apperr.StatusOf(last.Err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(last.Err),
			)
		} else {
			log.Debug("request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(last.Err),
			)
		}
		c.AbortWithStatusJSON(status, errorEnvelope{Error: apperr.MessageOf(last.Err)})
	}
}

// recoveryMiddleware answers a handler panic with the error envelope. It sits
// inside the metrics middleware so the 500 is still counted.
func recoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := apperr.Newf(apperr.Unexpected, "panic: %v", recovered)
		log.Error("handler panicked",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(apperr.StatusOf(err), errorEnvelope{Error: "Internal server error"})
	})
}

func notFoundRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorEnvelope{Error: "Route not found"})
}

// corsMiddleware lets the browser dashboard on another origin call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
