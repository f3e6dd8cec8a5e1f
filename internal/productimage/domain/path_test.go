package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		filename string
		want     string
	}{
		{"first dot extension", "My Shirt!", "photo.tar.gz", "products/my-shirt/77.tar"},
		{"single extension", "Red Hat", "hat.png", "products/red-hat/77.png"},
		{"multiple dots", "Blue Cap", "a.b.png", "products/blue-cap/77.b"},
		{"directory is ignored", "Red Hat", "uploads/v1.2/hat.jpg", "products/red-hat/77.jpg"},
		{"windows path", "Red Hat", `C:\pics\hat.jpeg`, "products/red-hat/77.jpeg"},
		{"empty slug falls back to product id", "!!!", "x.png", "products/5/77.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.title, 5, 77, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePathInvalidFilename(t *testing.T) {
	for _, filename := range []string{"photo", "", "photo.", "dir.v2/photo", "..png"} {
		_, err := ResolvePath("Red Hat", 5, 77, filename)
		assert.ErrorIs(t, err, ErrInvalidFilename, filename)
	}
}

func TestResolvePathWithPrefix(t *testing.T) {
	got, err := ResolvePathWithPrefix("/media/catalog/", "Red Hat", 5, 77, "hat.png")
	require.NoError(t, err)
	assert.Equal(t, "media/catalog/red-hat/77.png", got)

	got, err = ResolvePathWithPrefix("  ", "Red Hat", 5, 77, "hat.png")
	require.NoError(t, err)
	assert.Equal(t, "products/red-hat/77.png", got)
}
