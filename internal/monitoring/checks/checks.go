// Package checks provides the readiness probes wired by the server.
package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	"github.com/charlesng35/shopadmin/internal/database"
	"github.com/charlesng35/shopadmin/internal/monitoring"
)

const (
	probeKey                 = "health:probe"
	defaultMaintenanceMaxAge = 6 * time.Hour
)

// Database pings the configured database handle.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}
		return monitoring.ResultFromError(database.PingContext(ctx, db), time.Since(start))
	})
}

// Cache writes and reads back a probe key. The cache is best-effort, so failures only
// degrade readiness. A nil store means caching is disabled.
func Cache(store cache.Store, backend string) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "cache disabled"}
		}

		err := store.Set(ctx, probeKey, []byte("ok"), time.Minute)
		if err == nil {
			_, _, err = store.Get(ctx, probeKey)
		}
		result := monitoring.ResultFromError(err, time.Since(start))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		if result.Details == "" {
			result.Details = backend
		}
		return result
	})
}

// BlobLister lists stored uploads.
type BlobLister interface {
	List(ctx context.Context, dir string) ([]blob.Object, error)
}

// Blobs verifies the upload directories can be read.
func Blobs(store BlobLister, dirs ...string) monitoring.Check {
	return monitoring.NewCheck("blobs", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "blob store not configured"}
		}
		for _, dir := range dirs {
			if _, err := store.List(ctx, dir); err != nil {
				return monitoring.ResultFromError(err, time.Since(start))
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}

// RunReporter exposes the outcome of the latest maintenance run.
type RunReporter interface {
	LastRun() (time.Time, error)
}

// Maintenance degrades readiness when the latest run failed or is older than maxAge.
func Maintenance(reporter RunReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		at, err := reporter.LastRun()
		switch {
		case at.IsZero():
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first run"}
		case err != nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: err.Error()}
		case time.Since(at) > maxAge:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: "stale run " + at.UTC().Format(time.RFC3339),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
