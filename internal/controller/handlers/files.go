package handlers

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeFile GET /files/*path?token=
// Отдаёт объект только по подписанной ссылке.
func (h *Handlers) ServeFile(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")

	if err := h.objects.Verify(objectPath, c.Query("token")); err != nil {
		h.logger.Debug("Rejected file request", zap.String("path", objectPath), zap.Error(err))
		h.writeError(c, apperr.Forbidden("invalid or expired link"))
		return
	}

	f, err := h.objects.Open(objectPath)
	if errors.Is(err, os.ErrNotExist) {
		h.writeError(c, apperr.NotFound("file not found"))
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.writeError(c, err)
		return
	}

	http.ServeContent(c.Writer, c.Request, path.Base(objectPath), info.ModTime(), f)
}

// Health GET /healthz
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
