package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/app"
	iauth "github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/handlers"
	"github.com/charlesng35/shopadmin/internal/middleware"
	"github.com/charlesng35/shopadmin/internal/monitoring"
	"github.com/charlesng35/shopadmin/internal/security"
	"github.com/charlesng35/shopadmin/internal/services"
)

// Dependencies are the wired components the router exposes over HTTP.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Users    *services.UserService
	Products *services.ProductService
	Auth     *services.AuthService
	// Blobs receives multipart uploads before handlers run.
	Blobs middleware.BlobWriter
	// RateCounter backs the login rate limit. Nil disables limiting.
	RateCounter middleware.RateCounter
	// Health serves the readiness probes. Nil disables the readiness routes.
	Health *monitoring.HealthManager
	// Audit serves the admin security audit. Nil disables the route.
	Audit *security.AuditService
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Users == nil || d.Products == nil || d.Auth == nil:
		return errors.New("user, product and auth services must be provided")
	case d.Blobs == nil:
		return errors.New("blob store must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, deps.DB, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	if dir := strings.TrimSpace(cfg.Uploads.Dir); dir != "" {
		r.StaticFS("/uploads", gin.Dir(dir, false))
	}

	authHandler, err := handlers.NewAuthHandler(deps.Auth, deps.Users)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(deps.Users)
	if err != nil {
		return nil, err
	}
	productHandler, err := handlers.NewProductHandler(deps.Products)
	if err != nil {
		return nil, err
	}

	uploads := newUploadRoutes(deps.Blobs, cfg)

	api := r.Group("/api")
	registerAuthRoutes(api, authHandler, uploads, deps.RateCounter, cfg.Auth.LoginRateLimit)

	admin := api.Group("/admin")
	admin.Use(middleware.Auth(deps.JWT), middleware.RequireAdmin())
	registerUserRoutes(admin, userHandler, uploads)
	registerProductRoutes(admin, productHandler, uploads)

	if deps.Audit != nil {
		securityHandler, err := handlers.NewSecurityHandler(deps.Audit)
		if err != nil {
			return nil, err
		}
		admin.GET("/security/audit", securityHandler.Audit)
	}

	return r, nil
}

// uploadRoutes builds the upload middleware for each multipart route.
type uploadRoutes struct {
	avatar  gin.HandlerFunc
	product gin.HandlerFunc
}

func newUploadRoutes(blobs middleware.BlobWriter, cfg *app.Config) uploadRoutes {
	settings := cfg.ServiceSettings()
	maxImages := cfg.Uploads.MaxImages
	if maxImages <= 0 {
		maxImages = 10
	}

	base := middleware.UploadConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSize,
		AllowedTypes: cfg.Uploads.AllowedTypes,
	}

	avatar := base
	avatar.Dir = orDefault(settings.AvatarDir, "avatars")
	avatar.Fields = []middleware.UploadField{{Name: services.ProfilePictureField, MaxCount: 1}}

	product := base
	product.Dir = orDefault(settings.ProductDir, "products")
	product.Fields = []middleware.UploadField{
		{Name: services.ProductImageField, MaxCount: 1},
		{Name: services.ImagesField, MaxCount: maxImages},
	}

	return uploadRoutes{
		avatar:  middleware.Upload(blobs, avatar),
		product: middleware.Upload(blobs, product),
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, manager *monitoring.HealthManager) {
	health := handlers.Health(db)
	r.GET("/health", health)
	r.GET("/api/health", health)

	if manager != nil {
		ready := handlers.Readiness(manager)
		r.GET("/health/ready", ready)
		r.GET("/api/health/ready", ready)
	}
}
