package maintenance

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/metrics"
)

const (
	defaultSchedule    = "@hourly"
	defaultGracePeriod = 24 * time.Hour
)

// BlobStore lists and removes stored uploads.
type BlobStore interface {
	List(ctx context.Context, dir string) ([]blob.Object, error)
	Delete(ctx context.Context, path string)
}

// ImageReferencer reports the image filenames persisted records still point at.
type ImageReferencer interface {
	ReferencedImages(ctx context.Context) ([]string, error)
}

// ExpiredPurger removes expired cache rows.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// OrphanSource pairs an upload directory with the records referencing its files.
// Keep lists filenames that are never swept, such as placeholders.
type OrphanSource struct {
	Dir  string
	Refs ImageReferencer
	Keep []string
}

// SweepStats summarises one orphan sweep.
type SweepStats struct {
	Scanned int
	Removed int
}

// Cleaner coordinates background maintenance: sweeping uploads no record references and
// purging expired rows of the database cache backend.
type Cleaner struct {
	blobs    BlobStore
	sources  []OrphanSource
	purger   ExpiredPurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	grace    time.Duration
	schedule string

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for grace period comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the maintenance run.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithGracePeriod protects uploads younger than d. Requests still in flight may hold such
// files before their record is written.
func WithGracePeriod(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.grace = d
		}
	}
}

// WithOrphanSource registers a directory to sweep.
func WithOrphanSource(source OrphanSource) Option {
	return func(cleaner *Cleaner) {
		if source.Refs != nil {
			cleaner.sources = append(cleaner.sources, source)
		}
	}
}

// WithCachePurger enables the expired cache purge.
func WithCachePurger(purger ExpiredPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.purger = purger
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(blobs BlobStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		blobs:    blobs,
		now:      time.Now,
		grace:    defaultGracePeriod,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) enabled() bool {
	return (c.blobs != nil && len(c.sources) > 0) || c.purger != nil
}

// Start registers the maintenance job and launches the scheduler when there is work to do.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule), zap.Duration("grace_period", c.grace))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured task sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.blobs != nil && len(c.sources) > 0 {
		stats, err := c.SweepOrphans(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if stats.Removed > 0 {
			c.log.Info("orphan uploads removed", zap.Int("removed", stats.Removed), zap.Int("scanned", stats.Scanned))
		}
	}

	if c.purger != nil {
		purged, err := c.purger.PurgeExpired(ctx, c.now())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance: purge cache: %w", err))
		} else if purged > 0 {
			c.log.Debug("expired cache entries purged", zap.Int64("count", purged))
		}
	}

	c.mu.Lock()
	c.lastRun, c.lastErr = c.now(), errs
	c.mu.Unlock()
	return errs
}

// LastRun reports when RunOnce last finished and the error it returned.
func (c *Cleaner) LastRun() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastErr
}

// SweepOrphans deletes uploads older than the grace period that no record references.
// A source whose references cannot be loaded is skipped entirely.
func (c *Cleaner) SweepOrphans(ctx context.Context) (SweepStats, error) {
	if c.blobs == nil {
		return SweepStats{}, errors.New("maintenance: blob store is required")
	}

	var (
		stats SweepStats
		errs  error
	)
	cutoff := c.now().Add(-c.grace)

	for _, source := range c.sources {
		refs, err := source.Refs.ReferencedImages(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance: references for %s: %w", source.Dir, err))
			continue
		}
		keep := make(map[string]struct{}, len(refs)+len(source.Keep))
		for _, name := range append(refs, source.Keep...) {
			keep[name] = struct{}{}
		}

		objects, err := c.blobs.List(ctx, source.Dir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for _, obj := range objects {
			stats.Scanned++
			if _, ok := keep[path.Base(obj.Path)]; ok {
				continue
			}
			if obj.ModTime.After(cutoff) {
				continue
			}
			c.blobs.Delete(ctx, obj.Path)
			metrics.OrphanUploadsRemoved.Inc()
			stats.Removed++
		}
	}

	return stats, errs
}
