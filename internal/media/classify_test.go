package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func paths(units []Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Path())
	}
	return out
}

func TestClassifyPartitionsByExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"a.jpg", "b.png", "c.mp4", "d.txt", "e.json.xz", "f.mp4", "g.jpeg", "h.MP4",
		"nested/inner.jpg",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty.mp4"), 0o755))

	images, videos, err := Classify(dir, false, false)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, paths(images))
	assert.Equal(t, []string{filepath.Join(dir, "c.mp4"), filepath.Join(dir, "f.mp4")}, paths(videos))

	for _, u := range images {
		assert.Equal(t, KindImage, u.Kind())
	}
	for _, u := range videos {
		assert.Equal(t, KindVideo, u.Kind())
	}
}

func TestClassifyUnionIsExactlyRecognizedFiles(t *testing.T) {
	dir := t.TempDir()
	names := []string{"1.jpg", "2.png", "3.mp4", "4.gif", "5.mov", "6.jpg", "7.mp4", "8"}
	touch(t, dir, names...)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	images, videos, err := Classify(dir, false, false)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, p := range append(paths(images), paths(videos)...) {
		require.False(t, seen[p], "duplicate %s", p)
		seen[p] = true
	}

	var want []string
	for _, n := range names {
		if _, ok := KindOf(n); ok {
			want = append(want, filepath.Join(dir, n))
		}
	}
	got := append(paths(images), paths(videos)...)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestClassifySkipFlags(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.mp4")

	images, videos, err := Classify(dir, true, false)
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Len(t, videos, 1)

	images, videos, err = Classify(dir, false, true)
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Empty(t, videos)
}

func TestClassifyMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, _, err := Classify(missing, false, false)
	require.Error(t, err)
	assert.True(t, IsDirectoryNotFound(err))

	var dnf *DirectoryNotFoundError
	require.True(t, errors.As(err, &dnf))
	assert.Equal(t, missing, dnf.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClassifyPathIsFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.jpg")

	_, _, err := Classify(filepath.Join(dir, "file.jpg"), false, false)
	assert.True(t, IsDirectoryNotFound(err))
}

func TestClassifyEmptyPath(t *testing.T) {
	_, _, err := Classify("", false, false)
	assert.True(t, IsDirectoryNotFound(err))
}

func TestScanOrganizedLayout(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"images/a.jpg", "images/b.png", "images/stray.mp4",
		"videos/c.mp4", "videos/stray.png",
		"loose.jpg", "notes.txt",
	)

	images, videos, err := Scan(dir, false, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "images", "a.jpg"),
		filepath.Join(dir, "images", "b.png"),
		filepath.Join(dir, "loose.jpg"),
	}, paths(images))
	assert.Equal(t, []string{filepath.Join(dir, "videos", "c.mp4")}, paths(videos))
}

func TestScanFlatLayout(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.mp4", "other/c.jpg")

	images, videos, err := Scan(dir, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, paths(images))
	assert.Equal(t, []string{filepath.Join(dir, "b.mp4")}, paths(videos))
}

func TestScanMissingDirectory(t *testing.T) {
	_, _, err := Scan(filepath.Join(t.TempDir(), "gone"), false, false)
	assert.True(t, IsDirectoryNotFound(err))
}

type fakeProber struct {
	seconds float64
	err     error
}

func (f fakeProber) ProbeDuration(context.Context, string) (float64, error) {
	return f.seconds, f.err
}

func TestVideoIsProbeableImageIsNot(t *testing.T) {
	var u Unit = NewVideo("/v.mp4")
	p, ok := u.(Probeable)
	require.True(t, ok)

	d, err := p.Duration(context.Background(), fakeProber{seconds: 6})
	require.NoError(t, err)
	assert.Equal(t, 6.0, d)

	_, err = p.Duration(context.Background(), fakeProber{err: errors.New("corrupt")})
	assert.ErrorContains(t, err, "/v.mp4")

	u = NewImage("/i.jpg")
	_, ok = u.(Probeable)
	assert.False(t, ok)
}
