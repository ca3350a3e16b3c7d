package arc

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/arcFileTools/pkg/paths"
)

func sampleArchive(t *testing.T) *Archive {
	t.Helper()
	a := New(testKey())
	for _, in := range []struct {
		path string
		data []byte
	}{
		{"/gfx/ui/font.gim", compressible(2048)},
		{"/sound/hit.wav", []byte("RIFF\x04\x00\x00\x00WAVE")},
		{"/text/readme.txt", []byte("hello")},
		{"/unarc7x9", []byte("mystery")},
	} {
		_, err := a.Add(in.path, in.data)
		require.NoError(t, err)
	}
	return a
}

func TestUnpack(t *testing.T) {
	a := sampleArchive(t)
	buf, err := a.Marshal("sample.arc")
	require.NoError(t, err)

	// Parsed without paths: names come from the registry at unpack time.
	parsed, err := Parse(testKey(), buf)
	require.NoError(t, err)
	reg := resolverFor("/gfx/ui/font.gim", "/sound/hit.wav", "/text/readme.txt")

	dir := t.TempDir()
	n, err := parsed.Unpack(dir, reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for rel, want := range map[string][]byte{
		"gfx/ui/font.gim": compressible(2048),
		"sound/hit.wav":   []byte("RIFF\x04\x00\x00\x00WAVE"),
		"text/readme.txt": []byte("hello"),
		"unarc7x9":        []byte("mystery"),
	} {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, got, rel)
	}

	t.Run("SkipUnchanged", func(t *testing.T) {
		n, err := parsed.Unpack(dir, reg, WithSkipUnchanged(true))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "text", "readme.txt"), []byte("HELLO"), 0644))
		n, err = parsed.Unpack(dir, reg, WithSkipUnchanged(true))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("PathFilter", func(t *testing.T) {
		out := t.TempDir()
		n, err := parsed.Unpack(out, reg, WithPathFilter("gfx/**/*.gim"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.FileExists(t, filepath.Join(out, "gfx", "ui", "font.gim"))
		assert.NoFileExists(t, filepath.Join(out, "text", "readme.txt"))
	})

	t.Run("InvalidFilter", func(t *testing.T) {
		_, err := parsed.Unpack(t.TempDir(), reg, WithPathFilter("gfx/[a-"))
		assert.Error(t, err)
	})
}

func TestUnpackRejectsEscapingPaths(t *testing.T) {
	a := New(testKey())
	_, err := a.Add("/ok.txt", []byte("ok"))
	require.NoError(t, err)
	e, err := a.Add("../../evil.txt", []byte("evil"))
	require.NoError(t, err)

	root := t.TempDir()
	dir := filepath.Join(root, "out")
	_, err = a.Unpack(dir, nil)
	assert.True(t, errors.Is(err, ErrInvalidPath), "got %v", err)
	assert.NoFileExists(t, filepath.Join(root, "evil.txt"))

	t.Run("FromRegistry", func(t *testing.T) {
		b := New(testKey())
		_, err := b.Add(Placeholder(e.UID, e.NameHash), []byte("evil"))
		require.NoError(t, err)
		_, err = b.Unpack(dir, mapResolver{e.UID: "/../evil.txt"})
		assert.True(t, errors.Is(err, ErrInvalidPath))
	})
}

func TestOutputName(t *testing.T) {
	e := &Entry{UID: UID("/a/b.txt"), NameHash: NameHash("b.txt")}
	assert.Equal(t, Placeholder(e.UID, e.NameHash), OutputName(e, nil))
	assert.Equal(t, "/a/b.txt", OutputName(e, resolverFor("/a/b.txt")))
	assert.Equal(t, "/x/y.txt", OutputName(e, mapResolver{e.UID: "x\\y.txt"}))

	e.Path = "/a/b.txt"
	assert.Equal(t, "/a/b.txt", OutputName(e, nil))
}

func TestScanFiles(t *testing.T) {
	dir := t.TempDir()
	for rel, data := range map[string]string{
		"B/Two.txt":    "two",
		"a/one.txt":    "one",
		"a/deep/x.bin": "xx",
		"unarc12x34":   "placeholder",
	} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	}

	files, err := ScanFiles(dir)
	require.NoError(t, err)

	var got []string
	for _, f := range files {
		got = append(got, f.ArchivePath)
	}
	assert.Equal(t, []string{"/a/deep/x.bin", "/a/one.txt", "/b/two.txt", "/unarc12x34"}, got)
	assert.Equal(t, uint32(2), files[0].Size)
	assert.Equal(t, filepath.Join(dir, "B", "Two.txt"), files[2].Path)

	_, err = ScanFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestUnpackScanBuild(t *testing.T) {
	key := testKey()
	a := sampleArchive(t)
	want, err := a.Marshal("sample.arc")
	require.NoError(t, err)

	parsed, err := Parse(key, want, WithStrict(true), WithResolver(resolverFor("/gfx/ui/font.gim", "/sound/hit.wav", "/text/readme.txt")))
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = parsed.Unpack(dir, nil)
	require.NoError(t, err)

	files, err := ScanFiles(dir)
	require.NoError(t, err)

	reg := paths.New()
	built, err := NewBuilder(key, reg).Build(files)
	require.NoError(t, err)

	got, err := built.Marshal("sample.arc")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	discovered := reg.Discovered()
	assert.Len(t, discovered, 3, "placeholder entries are not recorded")
	assert.Equal(t, "/text/readme.txt", discovered[UID("/text/readme.txt")])
}

func TestBuilderKnownPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static.json"),
		[]byte(`{"`+strconv.FormatUint(uint64(UID("/known.txt")), 10)+`": "/known.txt"}`), 0644))
	reg, err := paths.Load(filepath.Join(dir, "static.json"), "")
	require.NoError(t, err)

	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "known.txt"), []byte("k"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "fresh.txt"), []byte("f"), 0644))

	files, err := ScanFiles(in)
	require.NoError(t, err)
	a, err := NewBuilder(testKey(), reg).Build(files)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	assert.Equal(t, map[uint32]string{UID("/fresh.txt"): "/fresh.txt"}, reg.Discovered())

	t.Run("NilRegistry", func(t *testing.T) {
		_, err := NewBuilder(testKey(), nil).Build(files)
		require.NoError(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewBuilder(testKey(), nil).Build([]ScannedFile{{ArchivePath: "/gone", Path: filepath.Join(in, "gone")}})
		assert.Error(t, err)
	})
}
