package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/handlers"
)

func registerProductRoutes(admin *gin.RouterGroup, handler *handlers.ProductHandler, uploads uploadRoutes) {
	products := admin.Group("/products")
	{
		products.POST("", uploads.product, handler.Create)
		products.GET("", handler.List)
		products.GET("/:id", handler.Get)
		products.PUT("/:id", uploads.product, handler.Update)
		products.DELETE("/:id", handler.Delete)
	}
}
