package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/field_rental/internal/render"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListFields GET /fields?active=true
// active=false отдаёт владельцу или админу все его поля, включая неактивные
func (h *Handlers) ListFields(c *gin.Context) {
	if c.DefaultQuery("active", "true") != "false" {
		fields, err := h.fieldService.ListActive(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, fields)
		return
	}

	userID, err := h.sessionUser(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	fields, err := h.fieldService.ListManaged(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fields)
}

// GetField GET /fields/:id
func (h *Handlers) GetField(c *gin.Context) {
	fieldID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	field, err := h.fieldService.Get(c.Request.Context(), fieldID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, field)
}

// CreateField POST /fields
func (h *Handlers) CreateField(c *gin.Context) {
	var in service.FieldInput
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}

	field, err := h.fieldService.Create(c.Request.Context(), callerID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, field)
}

// UpdateField PATCH /fields/:id
func (h *Handlers) UpdateField(c *gin.Context) {
	fieldID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	var patch service.FieldPatch
	if err := bindJSON(c, &patch); err != nil {
		h.writeError(c, err)
		return
	}

	field, err := h.fieldService.Update(c.Request.Context(), callerID(c), fieldID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, field)
}

// DeleteField DELETE /fields/:id
func (h *Handlers) DeleteField(c *gin.Context) {
	fieldID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.fieldService.Delete(c.Request.Context(), callerID(c), fieldID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddFieldImage POST /fields/:id/images (multipart: file, caption)
func (h *Handlers) AddFieldImage(c *gin.Context) {
	fieldID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()

	// Права проверяем до записи файла
	if err := h.fieldService.CanManage(ctx, callerID(c), fieldID); err != nil {
		h.writeError(c, err)
		return
	}

	file, err := h.uploadedFile(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	objectPath, err := h.storeUpload(c, storage.BucketFieldImages, fieldID.String(), file)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var caption *string
	if v := c.PostForm("caption"); v != "" {
		caption = &v
	}

	image, err := h.fieldService.AddImage(ctx, callerID(c), fieldID, objectPath, caption)
	if err != nil {
		h.removeObject(objectPath)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, image)
}

// removeObject убирает файл, который не удалось привязать к записи
func (h *Handlers) removeObject(objectPath string) {
	if err := h.objects.Remove(objectPath); err != nil {
		h.logger.Warn("Failed to remove orphan object",
			zap.String("path", objectPath),
			zap.Error(err),
		)
	}
}

// FieldSchedule GET /fields/:id/schedule.png?date=2024-06-03
// Картинка занятости поля на неделю, содержащую date (по умолчанию текущую)
func (h *Handlers) FieldSchedule(c *gin.Context) {
	fieldID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := time.Now().UTC()
	day := now
	if v := c.Query("date"); v != "" {
		day, err = time.Parse(time.DateOnly, v)
		if err != nil {
			h.badRequest(c, "date must be YYYY-MM-DD")
			return
		}
	}

	from, to := render.WeekRange(day)
	field, bookings, err := h.bookingService.Occupancy(c.Request.Context(), fieldID, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}

	img, err := render.WeekImage(field.Name, day, bookings, now)
	if err != nil {
		h.writeError(c, fmt.Errorf("render schedule: %w", err))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", img)
}
