package handlers

import (
	"github.com/Freeeeeet/field_rental/internal/auth"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/Freeeeeet/field_rental/internal/storage"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости HTTP-обработчиков
type Handlers struct {
	userService    *service.UserService
	fieldService   *service.FieldService
	bookingService *service.BookingService
	tokens         *auth.TokenIssuer
	objects        *storage.LocalStore
	maxUpload      int64
	logger         *zap.Logger
}

// NewHandlers создаёт обработчики HTTP API
func NewHandlers(
	userService *service.UserService,
	fieldService *service.FieldService,
	bookingService *service.BookingService,
	tokens *auth.TokenIssuer,
	objects *storage.LocalStore,
	maxUpload int64,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:    userService,
		fieldService:   fieldService,
		bookingService: bookingService,
		tokens:         tokens,
		objects:        objects,
		maxUpload:      maxUpload,
		logger:         logger,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
