package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/shopadmin/internal/blob"
	"github.com/charlesng35/shopadmin/internal/cache"
	"github.com/charlesng35/shopadmin/internal/database/testutil"
	"github.com/charlesng35/shopadmin/internal/monitoring"
)

type brokenStore struct{ cache.Store }

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection reset")
}

type reporter struct {
	at  time.Time
	err error
}

func (r reporter) LastRun() (time.Time, error) { return r.at, r.err }

func TestDatabase(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.Equal(t, monitoring.StatusUp, Database(db).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, Database(nil).Run(context.Background()).Status)
}

func TestCache(t *testing.T) {
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	ok := Cache(store, "memory").Run(context.Background())
	require.Equal(t, monitoring.StatusUp, ok.Status)
	require.Equal(t, "memory", ok.Details)

	broken := Cache(brokenStore{}, "redis").Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, broken.Status)
	require.Equal(t, "connection reset", broken.Details)

	disabled := Cache(nil, "none").Run(context.Background())
	require.Equal(t, monitoring.StatusUp, disabled.Status)
}

func TestBlobs(t *testing.T) {
	store := blob.NewMemory()
	require.Equal(t, monitoring.StatusUp, Blobs(store, "avatars", "products").Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, Blobs(nil).Run(context.Background()).Status)
}

func TestMaintenance(t *testing.T) {
	ctx := context.Background()

	require.Equal(t, "maintenance disabled", Maintenance(nil, 0).Run(ctx).Details)
	require.Equal(t, "pending first run", Maintenance(reporter{}, 0).Run(ctx).Details)
	require.Equal(t, monitoring.StatusUp, Maintenance(reporter{at: time.Now()}, time.Hour).Run(ctx).Status)

	failed := Maintenance(reporter{at: time.Now(), err: errors.New("disk full")}, time.Hour).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, failed.Status)
	require.Equal(t, "disk full", failed.Details)

	stale := Maintenance(reporter{at: time.Now().Add(-2 * time.Hour)}, time.Hour).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, stale.Status)
	require.Contains(t, stale.Details, "stale run")
}
