package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/api"
	"github.com/charlesng35/shopadmin/internal/app"
	"github.com/charlesng35/shopadmin/internal/app/maintenance"
	iauth "github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	"github.com/charlesng35/shopadmin/internal/database"
	"github.com/charlesng35/shopadmin/internal/monitoring"
	"github.com/charlesng35/shopadmin/internal/monitoring/checks"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/security"
	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/crypto"
	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Store    cache.Store
	Redis    *cache.RedisClient
	Blobs    *blob.Store
	Users    *services.UserService
	Products *services.ProductService
	Auth     *services.AuthService
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache, blob store, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Store, stack.Redis = selectCacheStore(cfg.Cache, dbStore, log)

	stack.Blobs, err = blob.NewLocal(cfg.Uploads.Dir, logger.WithModule("blob"))
	if err != nil {
		return nil, fmt.Errorf("initialise blob store: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	var entityCache cache.Cache = cache.Nop{}
	if stack.Store != nil {
		entityCache = cache.NewBestEffort(stack.Store, logger.WithModule("cache"))
	}

	deps := services.Dependencies{
		Cache:    entityCache,
		Blobs:    stack.Blobs,
		Hasher:   crypto.NewBcryptHasher(cfg.Auth.BcryptCost),
		Settings: cfg.ServiceSettings(),
	}

	stack.Users, err = services.NewUserService(repository.NewUserRepository(stack.DB), deps)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	stack.Products, err = services.NewProductService(repository.NewProductRepository(stack.DB), deps)
	if err != nil {
		return nil, fmt.Errorf("initialise product service: %w", err)
	}
	stack.Auth, err = services.NewAuthService(stack.Users, jwtSvc, services.AuthOptions{
		AppName: cfg.Email.AppName,
		Mailer:  mailer,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	created, err := stack.Auth.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminInput())
	if err != nil {
		return nil, fmt.Errorf("ensure bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap administrator provisioned", zap.String("email", cfg.Auth.BootstrapAdmin.Email))
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = newCleaner(cfg, stack, dbStore)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	audit := security.NewAuditService(stack.DB, jwtSvc, cfg)
	logAuditFindings(ctx, audit, log)

	// Rate limiting stays on even when entity caching is off.
	var rateCounter cache.Store = dbStore
	if stack.Store != nil {
		rateCounter = stack.Store
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:          stack.DB,
		Config:      cfg,
		JWT:         jwtSvc,
		Users:       stack.Users,
		Products:    stack.Products,
		Auth:        stack.Auth,
		Blobs:       stack.Blobs,
		RateCounter: rateCounter,
		Health:      newHealthManager(cfg, stack),
		Audit:       audit,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// selectCacheStore picks the configured backend. An unreachable Redis falls back to the
// database store; "none" disables entity caching.
func selectCacheStore(cfg app.CacheConfig, dbStore *cache.DatabaseStore, log *zap.Logger) (cache.Store, *cache.RedisClient) {
	switch cfg.BackendName() {
	case "redis":
		client, err := cache.NewRedisClient(cfg.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			return dbStore, nil
		}
		log.Info("redis connected", zap.String("addr", cfg.Redis.Address))
		return client, client
	case "database":
		return dbStore, nil
	case "none":
		return nil, nil
	default:
		return cache.NewMemoryStore(), nil
	}
}

// logAuditFindings reports failing and warning audit checks at start.
func logAuditFindings(ctx context.Context, audit *security.AuditService, log *zap.Logger) {
	result := audit.Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

func newCleaner(cfg *app.Config, stack *runtimeStack, dbStore *cache.DatabaseStore) *maintenance.Cleaner {
	settings := cfg.ServiceSettings()
	opts := []maintenance.Option{
		maintenance.WithSchedule(cfg.Maintenance.Schedule),
		maintenance.WithGracePeriod(cfg.Maintenance.GracePeriod),
		maintenance.WithOrphanSource(maintenance.OrphanSource{
			Dir:  orDefault(settings.AvatarDir, services.DefaultSettings().AvatarDir),
			Refs: stack.Users,
			Keep: []string{stack.Users.DefaultAvatar()},
		}),
		maintenance.WithOrphanSource(maintenance.OrphanSource{
			Dir:  orDefault(settings.ProductDir, services.DefaultSettings().ProductDir),
			Refs: stack.Products,
			Keep: []string{orDefault(settings.DefaultProductImage, services.DefaultSettings().DefaultProductImage)},
		}),
	}
	if stack.Store == cache.Store(dbStore) {
		opts = append(opts, maintenance.WithCachePurger(dbStore))
	}
	return maintenance.NewCleaner(stack.Blobs, opts...)
}

func newHealthManager(cfg *app.Config, stack *runtimeStack) *monitoring.HealthManager {
	settings := cfg.ServiceSettings()
	manager := monitoring.NewHealthManager(0)
	manager.Register(
		checks.Database(stack.DB),
		checks.Cache(stack.Store, cfg.Cache.BackendName()),
		checks.Blobs(stack.Blobs,
			orDefault(settings.AvatarDir, services.DefaultSettings().AvatarDir),
			orDefault(settings.ProductDir, services.DefaultSettings().ProductDir)),
	)
	if stack.Cleaner != nil {
		manager.Register(checks.Maintenance(stack.Cleaner, 0))
	}
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}
	if mem, ok := s.Store.(*cache.MemoryStore); ok {
		_ = mem.Close()
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
