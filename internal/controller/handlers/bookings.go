package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createBookingRequest struct {
	FieldID   uuid.UUID `json:"field_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type setStatusRequest struct {
	Status model.BookingStatus `json:"status" binding:"required"`
}

type attachProofRequest struct {
	FileRef string `json:"file_ref" binding:"required"`
}

// CreateBooking POST /bookings
func (h *Handlers) CreateBooking(c *gin.Context) {
	var in createBookingRequest
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), callerID(c), in.FieldID, in.StartTime, in.EndTime)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// MyBookings GET /bookings/mine
func (h *Handlers) MyBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListForRenter(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ManagedBookings GET /owner/bookings
func (h *Handlers) ManagedBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListForOwner(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetBooking GET /bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	bookingID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.bookingService.GetForViewer(c.Request.Context(), bookingID, callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// SetBookingStatus PATCH /bookings/:id/status
func (h *Handlers) SetBookingStatus(c *gin.Context) {
	bookingID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	var in setStatusRequest
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}

	booking, err := h.bookingService.SetStatus(c.Request.Context(), bookingID, callerID(c), in.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// AttachProof POST /bookings/:id/proof
// Принимает multipart с файлом либо JSON со ссылкой на уже загруженный объект.
func (h *Handlers) AttachProof(c *gin.Context) {
	bookingID, err := uuidParam(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	caller := callerID(c)

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var in attachProofRequest
		if err := bindJSON(c, &in); err != nil {
			h.writeError(c, err)
			return
		}

		booking, err := h.bookingService.AttachPaymentProof(ctx, bookingID, caller, in.FileRef)
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, booking)
		return
	}

	file, err := h.uploadedFile(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	objectPath, err := h.storeUpload(c, storage.BucketPaymentProofs, bookingID.String(), file)
	if err != nil {
		h.writeError(c, err)
		return
	}

	booking, err := h.bookingService.AttachPaymentProof(ctx, bookingID, caller, objectPath)
	if err != nil {
		h.removeObject(objectPath)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Dashboard GET /owner/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	dashboard, err := h.bookingService.OwnerDashboard(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
