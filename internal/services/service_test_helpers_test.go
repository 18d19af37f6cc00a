package services

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/database/testutil"
	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/upload"
	"github.com/charlesng35/shopadmin/pkg/mail"
)

type recordingCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	deleted  []string
	patterns []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string][]byte)}
}

func (c *recordingCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *recordingCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *recordingCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
}

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
}

func (c *recordingCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type recordingBlobs struct {
	mu      sync.Mutex
	deleted []string
}

func (b *recordingBlobs) Delete(_ context.Context, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, name)
}

func (b *recordingBlobs) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

type countingHasher struct {
	hashCalls int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashCalls++
	return "hashed:" + password, nil
}

func (h *countingHasher) Verify(hashed, password string) bool {
	return strings.TrimPrefix(hashed, "hashed:") == password && hashed != ""
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var errMailDown = errors.New("smtp unavailable")

type fixture struct {
	users       *UserService
	products    *ProductService
	cache       *recordingCache
	blobs       *recordingBlobs
	hasher      *countingHasher
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	deps        Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	f := &fixture{
		cache:  newRecordingCache(),
		blobs:  &recordingBlobs{},
		hasher: &countingHasher{},
	}
	f.deps = Dependencies{
		Cache:    f.cache,
		Blobs:    f.blobs,
		Hasher:   f.hasher,
		Logger:   zap.NewNop(),
		Settings: DefaultSettings(),
	}
	f.userRepo = repository.NewUserRepository(db)
	f.productRepo = repository.NewProductRepository(db)

	var err error
	f.users, err = NewUserService(f.userRepo, f.deps)
	require.NoError(t, err)
	f.products, err = NewProductService(f.productRepo, f.deps)
	require.NoError(t, err)
	return f
}

var errDiskFull = errors.New("disk full")

// failingProductRepo fails every write with err and delegates reads.
type failingProductRepo struct {
	repository.ProductRepository
	err error
}

func (r failingProductRepo) Insert(context.Context, *models.Product) error {
	return r.err
}

func (r failingProductRepo) UpdateByID(context.Context, string, map[string]any) (*models.Product, error) {
	return nil, r.err
}

func (r failingProductRepo) DeleteByID(context.Context, string) error {
	return r.err
}

// failingUserRepo fails every write with err and delegates reads.
type failingUserRepo struct {
	repository.UserRepository
	err error
}

func (r failingUserRepo) Insert(context.Context, *models.User) error {
	return r.err
}

func (r failingUserRepo) UpdateByID(context.Context, string, map[string]any) (*models.User, error) {
	return nil, r.err
}

// uploads builds a set of files already written under dir.
func uploads(dir, field string, names ...string) upload.Set {
	set := upload.Set{}
	for _, name := range names {
		set.Add(upload.File{
			Field:       field,
			Filename:    name,
			Path:        path.Join(dir, name),
			Size:        128,
			ContentType: "image/png",
		})
	}
	return set
}

func strPtr(value string) *string { return &value }
