package handlers

import (
	"net/http"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/Freeeeeet/field_rental/internal/service"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}

	user, err := h.userService.RegisterUser(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var in loginRequest
	if err := bindJSON(c, &in); err != nil {
		h.writeError(c, err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Me GET /auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handlers) respondWithToken(c *gin.Context, status int, user *model.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(status, authResponse{Token: token, User: user})
}
