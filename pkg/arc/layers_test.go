package arc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLayers(t *testing.T) {
	key := testKey()
	dir := t.TempDir()

	write := func(name string, files map[string]string) string {
		a := New(key)
		for _, p := range []string{"/a.txt", "/b.txt", "/c.txt", "/d.txt"} {
			if data, ok := files[p]; ok {
				_, err := a.Add(p, []byte(data))
				require.NoError(t, err)
			}
		}
		path := filepath.Join(dir, name)
		require.NoError(t, a.Pack(path))
		return path
	}

	base := write("base.arc", map[string]string{"/a.txt": "a0", "/b.txt": "b0"})
	patch1 := write("patch1.arc", map[string]string{"/b.txt": "b1", "/c.txt": "c1"})
	patch2 := write("patch2.arc", map[string]string{"/c.txt": "c2", "/d.txt": "d2"})

	merged, err := ReadLayers(context.Background(), key, []string{base, patch1, patch2}, WithStrict(true))
	require.NoError(t, err)

	sequential, err := ReadFile(key, base)
	require.NoError(t, err)
	for _, p := range []string{patch1, patch2} {
		layer, err := ReadFile(key, p)
		require.NoError(t, err)
		sequential.Patch(layer)
	}

	got, err := merged.Marshal("out.arc")
	require.NoError(t, err)
	want, err := sequential.Marshal("out.arc")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for path, want := range map[string]string{"/a.txt": "a0", "/b.txt": "b1", "/c.txt": "c2", "/d.txt": "d2"} {
		data, ok := merged.Extract(ByPath(path))
		require.True(t, ok, path)
		assert.Equal(t, want, string(data), path)
	}

	t.Run("MissingLayer", func(t *testing.T) {
		_, err := ReadLayers(context.Background(), key, []string{base, filepath.Join(dir, "nope.arc")})
		assert.Error(t, err)
	})

	t.Run("NoLayers", func(t *testing.T) {
		_, err := ReadLayers(context.Background(), key, nil)
		assert.Error(t, err)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ReadLayers(ctx, key, []string{base, patch1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
