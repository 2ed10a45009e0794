package handlers

import (
	"net/http"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized: http.StatusUnauthorized,
	apperr.KindForbidden:    http.StatusForbidden,
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindInvalidState: http.StatusConflict,
	apperr.KindStorage:      http.StatusServiceUnavailable,
}

// StatusFor код ответа для ошибки
func StatusFor(err error) int {
	if appErr, ok := apperr.As(err); ok {
		if status, ok := statusByKind[appErr.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// writeError отвечает ошибкой; непредвиденные ошибки логируются без подробностей в ответе
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := StatusFor(err)

	appErr, ok := apperr.As(err)
	if !ok || status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	if !ok {
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal", Message: "internal server error"})
		return
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: string(appErr.Kind), Message: appErr.Message})
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	h.writeError(c, apperr.Validation(message))
}
