package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/response"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth  *services.AuthService
	users *services.UserService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, users *services.UserService) (*AuthHandler, error) {
	if auth == nil || users == nil {
		return nil, errors.New("auth handler: auth and user services are required")
	}
	return &AuthHandler{auth: auth, users: users}, nil
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := requestContext(c)
	uploads := requestUploads(c)

	var input services.CreateUserInput
	if err := bindInput(c, &input); err != nil {
		h.users.Discard(ctx, uploads)
		response.Error(c, err)
		return
	}
	input.Uploads = uploads

	user, err := h.auth.Register(ctx, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Register successfully", user)
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if err := bindInput(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.auth.Login(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Login successfully", result)
}
