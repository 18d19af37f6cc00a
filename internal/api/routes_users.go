package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/handlers"
)

func registerUserRoutes(admin *gin.RouterGroup, handler *handlers.UserHandler, uploads uploadRoutes) {
	users := admin.Group("/users")
	{
		users.GET("", handler.List)
		users.GET("/:id", handler.Get)
		users.PUT("/:id", uploads.avatar, handler.Update)
		users.DELETE("/:id", handler.Delete)
	}
}
