package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/response"
)

// UserHandler serves the admin user routes.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service *services.UserService) (*UserHandler, error) {
	if service == nil {
		return nil, errors.New("user handler: service is required")
	}
	return &UserHandler{service: service}, nil
}

// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	users, source, err := h.service.List(requestContext(c), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, withSource("Get all users successfully", source), users, &response.Meta{
		Total:  len(users),
		Source: string(source),
	})
}

// GET /api/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	user, source, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := withSource(fmt.Sprintf("Get user by ID: %s successfully", id), source)
	response.SuccessWithMeta(c, http.StatusOK, message, user, &response.Meta{Total: 1, Source: string(source)})
}

// PUT /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	ctx := requestContext(c)
	uploads := requestUploads(c)

	var input services.UpdateUserInput
	if err := bindInput(c, &input); err != nil {
		h.service.Discard(ctx, uploads)
		response.Error(c, err)
		return
	}
	input.Uploads = uploads

	id := strings.TrimSpace(c.Param("id"))
	user, err := h.service.Update(ctx, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fmt.Sprintf("User with ID: %s updated successfully", id), user)
}

// DELETE /api/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "User deleted successfully", nil)
}

func withSource(message string, source services.Source) string {
	if source == services.SourceCache {
		return message + " (from cache)"
	}
	return message
}
