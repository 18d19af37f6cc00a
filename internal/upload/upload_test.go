package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAccessors(t *testing.T) {
	set := Set{}
	require.True(t, set.Empty())

	set.Add(File{Field: "product_image", Filename: "product_image-1.png", Path: "products/product_image-1.png"})
	set.Add(File{Field: "images", Filename: "images-2.png"})
	set.Add(File{Field: "images", Filename: "images-3.png"})

	single, ok := set.Single("product_image")
	require.True(t, ok)
	require.Equal(t, "products/product_image-1.png", single.Path)

	_, ok = set.Single("profile_picture")
	require.False(t, ok)

	require.Equal(t, []string{"images-2.png", "images-3.png"}, set.Filenames("images"))
	require.Len(t, set.Files(), 3)
	require.False(t, set.Empty())
}

func TestNilSetIsEmpty(t *testing.T) {
	var set Set
	require.True(t, set.Empty())
	require.Empty(t, set.Files())
	require.Empty(t, set.Filenames("images"))

	set.Add(File{Field: "images", Filename: "images-1.png"})
	require.Equal(t, []string{"images-1.png"}, set.Filenames("images"))
	require.False(t, set.Empty())
}

func TestContextRoundTrip(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))

	set := Set{"images": {{Filename: "a.png"}}}
	ctx := WithSet(context.Background(), set)
	require.Equal(t, set, FromContext(ctx))
}
