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

// ProductHandler serves the admin product routes.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(service *services.ProductService) (*ProductHandler, error) {
	if service == nil {
		return nil, errors.New("product handler: service is required")
	}
	return &ProductHandler{service: service}, nil
}

// POST /api/admin/products
func (h *ProductHandler) Create(c *gin.Context) {
	ctx := requestContext(c)
	uploads := requestUploads(c)

	var input services.CreateProductInput
	if err := bindInput(c, &input); err != nil {
		h.service.Discard(ctx, uploads)
		response.Error(c, err)
		return
	}
	input.Uploads = uploads

	product, err := h.service.Create(ctx, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Product created successfully", product)
}

// GET /api/admin/products
func (h *ProductHandler) List(c *gin.Context) {
	products, source, err := h.service.List(requestContext(c), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, withSource("Get all products successfully", source), products, &response.Meta{
		Total:  len(products),
		Source: string(source),
	})
}

// GET /api/admin/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	product, source, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := withSource(fmt.Sprintf("Get product by ID: %s successfully", id), source)
	response.SuccessWithMeta(c, http.StatusOK, message, product, &response.Meta{Total: 1, Source: string(source)})
}

// PUT /api/admin/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	ctx := requestContext(c)
	uploads := requestUploads(c)

	var input services.UpdateProductInput
	if err := bindInput(c, &input); err != nil {
		h.service.Discard(ctx, uploads)
		response.Error(c, err)
		return
	}
	input.Uploads = uploads

	id := strings.TrimSpace(c.Param("id"))
	product, err := h.service.Update(ctx, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fmt.Sprintf("Product with ID: %s updated successfully", id), product)
}

// DELETE /api/admin/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Product deleted successfully", nil)
}
