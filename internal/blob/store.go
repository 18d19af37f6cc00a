// Package blob stores uploaded images on a go-billy filesystem rooted at the uploads directory.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/metrics"
)

// Deleter removes a previously saved blob. Implementations never fail the caller.
type Deleter interface {
	Delete(ctx context.Context, path string)
}

// Object describes a stored blob.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store keeps blobs on a billy filesystem. Paths are slash separated and relative to its root.
type Store struct {
	fs  billy.Filesystem
	log *zap.Logger
}

// NewLocal returns a Store confined to root on the local disk.
func NewLocal(root string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob: root directory is required")
	}
	bfs := osfs.New(root, osfs.WithBoundOS())
	if err := bfs.MkdirAll("/", 0o755); err != nil {
		return nil, fmt.Errorf("blob: prepare root %s: %w", root, err)
	}
	return New(bfs, log), nil
}

// NewMemory returns a Store backed by memory. Used in tests.
func NewMemory() *Store {
	return New(memfs.New(), zap.NewNop())
}

// New wraps an existing billy filesystem.
func New(bfs billy.Filesystem, log *zap.Logger) *Store {
	if log == nil {
		log = logger.WithModule("blob")
	}
	return &Store{fs: bfs, log: log}
}

// Save writes r to name, creating parent directories. A partially written file is removed.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (n int64, err error) {
	name = clean(name)
	if name == "" {
		return 0, errors.New("blob: empty path")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("blob: create %s: %w", dir, err)
		}
	}

	f, err := s.fs.Create(name)
	if err != nil {
		return 0, fmt.Errorf("blob: create %s: %w", name, err)
	}
	n, err = io.Copy(f, r)
	err = multierr.Append(err, f.Close())
	if err != nil {
		multierr.AppendInto(&err, s.fs.Remove(name))
		return 0, fmt.Errorf("blob: write %s: %w", name, err)
	}
	return n, nil
}

// Exists reports whether name is present.
func (s *Store) Exists(name string) bool {
	_, err := s.fs.Stat(clean(name))
	return err == nil
}

// Delete removes name. Failures are logged and counted but never returned.
func (s *Store) Delete(_ context.Context, name string) {
	name = clean(name)
	if name == "" {
		return
	}

	err := s.fs.Remove(name)
	switch {
	case err == nil:
		metrics.BlobDeletions.WithLabelValues("deleted").Inc()
		s.log.Debug("blob deleted", zap.String("path", name))
	case errors.Is(err, fs.ErrNotExist):
		metrics.BlobDeletions.WithLabelValues("missing").Inc()
		s.log.Debug("blob already absent", zap.String("path", name))
	default:
		metrics.BlobDeletions.WithLabelValues("error").Inc()
		s.log.Warn("blob delete failed", zap.String("path", name), zap.Error(err))
	}
}

// List returns the regular files directly inside dir. A missing dir yields no objects.
func (s *Store) List(_ context.Context, dir string) ([]Object, error) {
	infos, err := s.fs.ReadDir(clean(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob: list %s: %w", dir, err)
	}

	objects := make([]Object, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		objects = append(objects, Object{
			Path:    path.Join(clean(dir), info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

func clean(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	return name
}
