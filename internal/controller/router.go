package controller

import (
	"github.com/Freeeeeet/field_rental/internal/controller/handlers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает HTTP API поверх обработчиков
func NewRouter(h *handlers.Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))

	r.GET("/healthz", h.Health)
	r.GET("/files/*path", h.ServeFile)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", h.RequireAuth(), h.Me)
	}

	// Каталог открыт всем, изменения только с сессией
	r.GET("/fields", h.ListFields)
	r.GET("/fields/:id", h.GetField)
	r.GET("/fields/:id/schedule.png", h.FieldSchedule)

	secured := r.Group("")
	secured.Use(h.RequireAuth())
	{
		secured.POST("/fields", h.CreateField)
		secured.PATCH("/fields/:id", h.UpdateField)
		secured.DELETE("/fields/:id", h.DeleteField)
		secured.POST("/fields/:id/images", h.AddFieldImage)

		secured.POST("/bookings", h.CreateBooking)
		secured.GET("/bookings/mine", h.MyBookings)
		secured.GET("/bookings/:id", h.GetBooking)
		secured.PATCH("/bookings/:id/status", h.SetBookingStatus)
		secured.POST("/bookings/:id/proof", h.AttachProof)

		secured.GET("/owner/dashboard", h.Dashboard)
		secured.GET("/owner/bookings", h.ManagedBookings)
	}

	return r
}
