package blob

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestSaveCreatesParentsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	n, err := store.Save(ctx, "products/images-1.png", strings.NewReader("png"))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.True(t, store.Exists("products/images-1.png"))

	store.Delete(ctx, "products/images-1.png")
	require.False(t, store.Exists("products/images-1.png"))
}

func TestSaveRemovesPartialFile(t *testing.T) {
	store := NewMemory()

	_, err := store.Save(context.Background(), "avatars/a.png", failingReader{})
	require.ErrorContains(t, err, "client went away")
	require.False(t, store.Exists("avatars/a.png"))
}

func TestDeleteNeverFails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := New(memfs.New(), zap.New(core))

	store.Delete(context.Background(), "avatars/missing.png")
	store.Delete(context.Background(), "")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "blob already absent", logs.All()[0].Message)
}

func TestPathsStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Save(ctx, "../../etc/evil.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.True(t, store.Exists("etc/evil.png"))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for _, name := range []string{"products/a.png", "products/b.png", "avatars/c.png"} {
		_, err := store.Save(ctx, name, strings.NewReader("x"))
		require.NoError(t, err)
	}

	objects, err := store.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.ElementsMatch(t, []string{"products/a.png", "products/b.png"}, []string{objects[0].Path, objects[1].Path})

	objects, err = store.List(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, objects)
}

func TestNewLocalRequiresRoot(t *testing.T) {
	_, err := NewLocal("  ", nil)
	require.Error(t, err)

	store, err := NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "avatars/x.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.True(t, store.Exists("avatars/x.png"))
}
