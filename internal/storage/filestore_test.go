package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.ErrorIs(t, err, ErrNoBasePath)

	dir := filepath.Join(t.TempDir(), "nested", "root")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.BasePath())
	assert.DirExists(t, dir)
}

func TestWriteRead(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := s.Write(ctx, "/previews/a.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "previews/a.jpg", key)

	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)

	_, err = s.Write(ctx, key, []byte("again"))
	require.NoError(t, err)
	got, err = s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), got)

	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "previews"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := s.Write(ctx, "x.jpg", []byte{1})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, key))
}

func TestWriteCanceled(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Write(ctx, "x.jpg", []byte{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeKey(t *testing.T) {
	test := []struct {
		key  string
		want string
		ok   bool
	}{
		{"previews/a.jpg", "previews/a.jpg", true},
		{"./previews//a.jpg", "previews/a.jpg", true},
		{`previews\b.jpg`, "previews/b.jpg", true},
		{"/abs/c.jpg", "abs/c.jpg", true},
		{"a/../b.jpg", "b.jpg", true},
		{"../escape.jpg", "", false},
		{"..", "", false},
		{"a/../../x", "", false},
		{"", "", false},
		{".", "", false},
	}
	for _, tt := range test {
		got, err := sanitizeKey(tt.key)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.key)
			continue
		}
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got)
	}
}
