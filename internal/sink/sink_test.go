package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/satrx/internal/core"
)

func TestFileSink_WriteOutOfOrderAndCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSink(dir, ".jpg")
	require.NoError(t, err)

	img, err := s.Open("GEOSCAN_1")
	require.NoError(t, err)
	assert.Equal(t, "GEOSCAN_1", img.ID())

	_, err = img.WriteAt([]byte{0x03, 0x04}, 2)
	require.NoError(t, err)
	_, err = img.WriteAt([]byte{0x01, 0x02}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), img.Size())

	_, err = os.Stat(filepath.Join(dir, "GEOSCAN_1.jpg.part"))
	require.NoError(t, err, "image in progress lives under .part")

	require.NoError(t, img.Close())

	data, err := os.ReadFile(filepath.Join(dir, "GEOSCAN_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = img.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, core.ErrImageNotOpen)
	assert.ErrorIs(t, img.Close(), core.ErrImageNotOpen)
}

func TestFileSink_Partial(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, ".jpg")
	require.NoError(t, err)

	img, err := s.Open("GEOSCAN_2")
	require.NoError(t, err)
	_, err = img.WriteAt([]byte{0xFF, 0xD8}, 0)
	require.NoError(t, err)
	require.NoError(t, img.Finish(true))

	_, err = os.Stat(filepath.Join(dir, "GEOSCAN_2.partial.jpg"))
	assert.NoError(t, err)
}

func TestFileSink_Abort(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, ".jpg")
	require.NoError(t, err)

	img, err := s.Open("GEOSCAN_3")
	require.NoError(t, err)
	_, _ = img.WriteAt([]byte{1}, 0)
	require.NoError(t, img.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()

	a, _ := s.Open("A")
	b, _ := s.Open("B")
	assert.Equal(t, 2, s.OpenCount())

	_, _ = a.WriteAt([]byte{9}, 3)
	_, _ = a.WriteAt([]byte{1, 2}, 0)
	require.NoError(t, a.Close())
	require.NoError(t, b.Abort())

	images := s.Images()
	require.Len(t, images, 1)
	assert.Equal(t, Stored{ID: "A", Data: []byte{1, 2, 0, 9}}, images[0])
	assert.Equal(t, 0, s.OpenCount())

	_, err := a.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, core.ErrImageNotOpen)
}

func TestFileSinkPath(t *testing.T) {
	s := &FileSink{dir: "out", ext: ".jpg"}
	assert.Equal(t, filepath.Join("out", "IMG.jpg"), s.Path("IMG", false))
	assert.Equal(t, filepath.Join("out", "IMG.partial.jpg"), s.Path("IMG", true))
}
