package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/blockworld/internal/world"
)

// corsMiddleware разрешает запросы к API с любых источников
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// abortWith прерывает обработку запроса с ошибкой
func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, GenericResponse{
		Success: false,
		Message: message,
	})
}

// statusFor сопоставляет ошибку мира HTTP-статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrOutOfRange),
		errors.Is(err, world.ErrUnknownBlock),
		errors.Is(err, world.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrNotMinable):
		return http.StatusConflict
	case errors.Is(err, world.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError отвечает ошибкой мира; внутренние ошибки пишутся в лог
func (rs *RestServer) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		rs.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	abortWith(c, status, err.Error())
}
