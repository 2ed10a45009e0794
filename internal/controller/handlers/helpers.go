package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/Freeeeeet/field_rental/internal/apperr"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// uuidParam разбирает UUID из параметра пути
func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// bindJSON разбирает тело запроса, ошибки разбора превращаются в validation
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// uploadedFile достаёт файл из multipart-формы с ограничением размера
func (h *Handlers) uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("file is too large")
		}
		return nil, apperr.Validation("file is required")
	}

	if file.Size > h.maxUpload {
		return nil, apperr.Validation("file is too large")
	}

	return file, nil
}

// storeUpload сохраняет файл в бакет под именем <prefix>_<uuid>.<ext>
func (h *Handlers) storeUpload(c *gin.Context, bucket, prefix string, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	objectPath, err := h.objects.Put(c.Request.Context(), bucket, storage.ObjectName(prefix, file.Filename), src)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "failed to store file", err)
	}

	return objectPath, nil
}
