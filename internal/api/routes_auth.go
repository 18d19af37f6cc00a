package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/app"
	"github.com/charlesng35/shopadmin/internal/handlers"
	"github.com/charlesng35/shopadmin/internal/middleware"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, uploads uploadRoutes, counter middleware.RateCounter, limit app.RateLimitSettings) {
	api.POST("/register", uploads.avatar, handler.Register)
	api.POST("/login", middleware.RateLimit(counter, limit.Requests, limit.Window), handler.Login)
}
