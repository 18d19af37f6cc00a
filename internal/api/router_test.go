package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/app"
	iauth "github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	"github.com/charlesng35/shopadmin/internal/database/testutil"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/crypto"
)

func newTestRouter(t *testing.T, cfg *app.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	blobs := blob.NewMemory()
	deps := services.Dependencies{
		Cache:  cache.NewBestEffort(store, zap.NewNop()),
		Blobs:  blobs,
		Hasher: crypto.NewBcryptHasher(4),
		Logger: zap.NewNop(),
	}

	users, err := services.NewUserService(repository.NewUserRepository(db), deps)
	if err != nil {
		t.Fatalf("user service: %v", err)
	}
	products, err := services.NewProductService(repository.NewProductRepository(db), deps)
	if err != nil {
		t.Fatalf("product service: %v", err)
	}
	authSvc, err := services.NewAuthService(users, jwtSvc, services.AuthOptions{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	router, err := NewRouter(Dependencies{
		DB:          db,
		Config:      cfg,
		JWT:         jwtSvc,
		Users:       users,
		Products:    products,
		Auth:        authSvc,
		Blobs:       blobs,
		RateCounter: store,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, &app.Config{})

	for _, path := range []string{"/health", "/api/health"} {
		if w := serve(router, http.MethodGet, path); w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, w.Code)
		}
	}

	for _, path := range []string{"/api/admin/users", "/api/admin/products", "/api/admin/users/123"} {
		if w := serve(router, http.MethodGet, path); w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without token, got %d", path, w.Code)
		}
	}

	w := serve(router, http.MethodGet, "/api/unknown")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on every response")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &app.Config{
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
	})

	if rec := serve(router, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rec.Code)
	}

	metricsRec := serve(router, http.MethodGet, "/metrics")
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", metricsRec.Code)
	}
	if !strings.Contains(metricsRec.Body.String(), "shopadmin_api_latency_seconds") {
		t.Fatalf("expected latency histogram in metrics output")
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := newTestRouter(t, &app.Config{})

	if rec := serve(router, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for /metrics when disabled, got %d", rec.Code)
	}
}

func TestRouter_ServesUploadedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "avatars"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "avatars", "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	router := newTestRouter(t, &app.Config{Uploads: app.UploadsConfig{Dir: dir}})

	rec := serve(router, http.MethodGet, "/uploads/avatars/a.png")
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Fatalf("expected uploaded file, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(router, http.MethodGet, "/uploads/avatars/missing.png"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing upload, got %d", rec.Code)
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	router := newTestRouter(t, &app.Config{
		Auth: app.AuthConfig{LoginRateLimit: app.RateLimitSettings{Requests: 1, Window: time.Minute}},
	})

	login := func() int {
		rec := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@example.com","password":"secret1"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := login(); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown account, got %d", code)
	}
	if code := login(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding the limit, got %d", code)
	}
}

func TestRouter_ReadinessRoutes(t *testing.T) {
	router := newTestRouter(t, &app.Config{})
	if rec := serve(router, http.MethodGet, "/health/ready"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected readiness to be disabled without a manager, got %d", rec.Code)
	}
}

func TestNewRouterValidatesDependencies(t *testing.T) {
	if _, err := NewRouter(Dependencies{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}
