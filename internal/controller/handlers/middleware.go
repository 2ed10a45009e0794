package handlers

import (
	"strings"
	"time"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// RequireAuth проверяет bearer-токен и кладёт ID пользователя в контекст.
// Роль здесь не проверяется: сервисы читают её из хранилища.
func (h *Handlers) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.sessionUser(c)
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequestLogger пишет access log через zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id, ok := c.Get(userIDKey); ok {
			fields = append(fields, zap.String("user_id", id.(uuid.UUID).String()))
		}

		if c.Writer.Status() >= 500 {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}

// sessionUser достаёт пользователя из заголовка Authorization
func (h *Handlers) sessionUser(c *gin.Context) (uuid.UUID, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return uuid.Nil, apperr.Unauthorized("missing bearer token")
	}

	userID, err := h.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindUnauthorized, "session expired", err)
	}

	return userID, nil
}

// callerID ID пользователя, положенный RequireAuth
func callerID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}
