package services

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/auditctx"
	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	"github.com/charlesng35/shopadmin/internal/upload"
	"github.com/charlesng35/shopadmin/pkg/crypto"
	"github.com/charlesng35/shopadmin/pkg/logger"
)

// Source tells callers where a read was served from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceRepository Source = "repository"
)

// DefaultCacheTTL bounds how long cached records and lists live.
const DefaultCacheTTL = time.Hour

// Settings tunes the entity services.
type Settings struct {
	CacheTTL time.Duration
	// SweepFilteredLists makes every write also drop filtered list keys, not only the
	// canonical unfiltered one.
	SweepFilteredLists  bool
	DefaultAvatar       string
	DefaultProductImage string
	AvatarDir           string
	ProductDir          string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		CacheTTL:            DefaultCacheTTL,
		SweepFilteredLists:  true,
		DefaultAvatar:       "default-avatar.png",
		DefaultProductImage: "default-product.png",
		AvatarDir:           "avatars",
		ProductDir:          "products",
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.CacheTTL <= 0 {
		s.CacheTTL = def.CacheTTL
	}
	if strings.TrimSpace(s.DefaultAvatar) == "" {
		s.DefaultAvatar = def.DefaultAvatar
	}
	if strings.TrimSpace(s.DefaultProductImage) == "" {
		s.DefaultProductImage = def.DefaultProductImage
	}
	if strings.TrimSpace(s.AvatarDir) == "" {
		s.AvatarDir = def.AvatarDir
	}
	if strings.TrimSpace(s.ProductDir) == "" {
		s.ProductDir = def.ProductDir
	}
	return s
}

// Dependencies are the collaborators shared by the entity services. Cache and Logger are
// optional.
type Dependencies struct {
	Cache    cache.Cache
	Blobs    blob.Deleter
	Hasher   crypto.Hasher
	Logger   *zap.Logger
	Settings Settings
}

// entity bundles the cache and blob bookkeeping common to users and products.
type entity struct {
	name       string // singular, used in keys and messages
	collection string // plural, used in list keys
	dir        string // blob directory holding this entity's images
	cache      cache.Cache
	blobs      blob.Deleter
	log        *zap.Logger
	settings   Settings
}

func newEntity(name, collection string, deps Dependencies) (entity, error) {
	if deps.Blobs == nil {
		return entity{}, errors.New(name + " service: blob store is required")
	}
	settings := deps.Settings.withDefaults()
	e := entity{
		name:       name,
		collection: collection,
		cache:      deps.Cache,
		blobs:      deps.Blobs,
		log:        deps.Logger,
		settings:   settings,
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}
	if e.log == nil {
		e.log = logger.WithModule("services." + name)
	}
	return e, nil
}

func (e entity) entityKey(id string) string {
	return e.name + ":" + id
}

func (e entity) canonicalListKey() string {
	return e.collection + ":{}"
}

// listKey serialises the list filter. The empty filter maps to the canonical key.
func (e entity) listKey(search string) string {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return e.canonicalListKey()
	}
	encoded, err := json.Marshal(struct {
		Search string `json:"search"`
	}{Search: term})
	if err != nil {
		return e.canonicalListKey()
	}
	return e.collection + ":" + string(encoded)
}

// readCached decodes a cached value into out. Undecodable entries are dropped and
// reported as misses.
func (e entity) readCached(ctx context.Context, key string, out any) bool {
	data, ok := e.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		e.log.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		e.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (e entity) writeCached(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		e.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	e.cache.Set(ctx, key, data, e.settings.CacheTTL)
}

// invalidate drops the entity key (when id is set) and the list keys after a write.
func (e entity) invalidate(ctx context.Context, id string) {
	keys := []string{e.canonicalListKey()}
	if id != "" {
		keys = append([]string{e.entityKey(id)}, keys...)
	}
	e.cache.Delete(ctx, keys...)
	if e.settings.SweepFilteredLists {
		e.cache.DeleteByPattern(ctx, e.collection+":*")
	}
}

// logWrite records a completed write, attributed to the request actor when known.
func (e entity) logWrite(ctx context.Context, msg string, fields ...zap.Field) {
	e.log.Info(msg, append(fields, auditctx.Fields(ctx)...)...)
}

func (e entity) blobPath(filename string) string {
	return path.Join(e.dir, filename)
}

// deleteImages removes the blobs behind filenames, skipping blanks and the placeholder.
// Names reaching outside the entity directory are never deleted.
func (e entity) deleteImages(ctx context.Context, placeholder string, filenames ...string) {
	for _, name := range filenames {
		name = strings.TrimSpace(name)
		if name == "" || name == placeholder {
			continue
		}
		if !plainFilename(name) {
			e.log.Warn("refusing to delete image outside its directory", zap.String("image", name))
			continue
		}
		e.blobs.Delete(ctx, e.blobPath(name))
	}
}

// Discard deletes uploads a request will not use, e.g. after a malformed body.
func (e entity) Discard(ctx context.Context, set upload.Set) {
	e.track(set).release(ensureContext(ctx))
}

func (e entity) track(set upload.Set) *pendingUploads {
	return &pendingUploads{blobs: e.blobs, files: set.Files()}
}

// pendingUploads owns the files saved for one request until a record references them.
type pendingUploads struct {
	blobs blob.Deleter
	files []upload.File
	kept  map[string]struct{}
}

// keep promotes the uploads whose filenames a persisted record now references.
func (p *pendingUploads) keep(filenames ...string) {
	if p.kept == nil {
		p.kept = make(map[string]struct{}, len(filenames))
	}
	for _, name := range filenames {
		p.kept[name] = struct{}{}
	}
}

// release deletes every upload that was not promoted. Safe to defer on all paths.
func (p *pendingUploads) release(ctx context.Context) {
	for _, f := range p.files {
		if _, ok := p.kept[f.Filename]; ok {
			continue
		}
		p.blobs.Delete(ctx, f.Path)
	}
}
