package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/api"
	"github.com/charlesng35/shopadmin/internal/app"
	iauth "github.com/charlesng35/shopadmin/internal/auth"
	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	sharedtestutil "github.com/charlesng35/shopadmin/internal/database/testutil"
	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/security"
	"github.com/charlesng35/shopadmin/internal/services"
	"github.com/charlesng35/shopadmin/pkg/crypto"
	"github.com/charlesng35/shopadmin/pkg/response"
)

// PNG is the smallest payload the upload middleware sniffs as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Blobs    *blob.Store
	Store    *cache.MemoryStore
	Users    *services.UserService
	Products *services.ProductService
}

// Option adjusts the configuration used by NewEnv.
type Option func(*app.Config)

// WithLoginRateLimit sets the login rate limit.
func WithLoginRateLimit(requests int, window time.Duration) Option {
	return func(cfg *app.Config) {
		cfg.Auth.LoginRateLimit = app.RateLimitSettings{Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			LoginRateLimit: app.RateLimitSettings{Requests: 1000, Window: time.Minute},
		},
		Cache:      app.CacheConfig{TTL: time.Hour, SweepFilteredLists: true},
		Uploads:    app.UploadsConfig{MaxFileSize: 1 << 20, MaxImages: 3},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	blobs := blob.NewMemory()

	deps := services.Dependencies{
		Cache:    cache.NewBestEffort(store, zap.NewNop()),
		Blobs:    blobs,
		Hasher:   crypto.NewBcryptHasher(4),
		Logger:   zap.NewNop(),
		Settings: cfg.ServiceSettings(),
	}
	users, err := services.NewUserService(repository.NewUserRepository(db), deps)
	require.NoError(t, err)
	products, err := services.NewProductService(repository.NewProductRepository(db), deps)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(users, jwtSvc, services.AuthOptions{Logger: zap.NewNop()})
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:          db,
		Config:      cfg,
		JWT:         jwtSvc,
		Users:       users,
		Products:    products,
		Auth:        authSvc,
		Blobs:       blobs,
		RateCounter: store,
		Audit:       security.NewAuditService(db, jwtSvc, cfg),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Blobs:    blobs,
		Store:    store,
		Users:    users,
		Products: products,
	}
}

// CreateUser registers an account with a random username through the service layer.
func (e *Env) CreateUser(role, password string) *models.User {
	e.T.Helper()

	username := "u" + uuid.NewString()[:8]
	user, err := e.Users.Create(e.T.Context(), services.CreateUserInput{
		Username: username,
		Name:     "Test " + username,
		Email:    username + "@example.com",
		Password: password,
		Role:     role,
	})
	require.NoError(e.T, err)
	return user
}

// AdminToken creates an administrator and returns an access token for it.
func (e *Env) AdminToken() string {
	e.T.Helper()
	admin := e.CreateUser(models.RoleAdmin, "admin-secret")
	token, err := e.JWT.GenerateAccessToken(admin.ID, admin.Role)
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// File is one part of a multipart request.
type File struct {
	Field    string
	Filename string
	Content  []byte
}

// Multipart sends fields and files as multipart/form-data.
func (e *Env) Multipart(method, path string, fields map[string]string, files []File, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		require.NoError(e.T, err)
		_, err = part.Write(f.Content)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(method, path, body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

// StoredFiles lists the blobs under dir.
func (e *Env) StoredFiles(dir string) []string {
	e.T.Helper()
	objects, err := e.Blobs.List(e.T.Context(), dir)
	require.NoError(e.T, err)
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, obj.Path)
	}
	return names
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
