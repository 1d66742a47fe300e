package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/satrx/internal/config"
	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/core/decoder"
)

func jpegLike(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i * 7)
	}
	img[0], img[1] = 0xFF, 0xD8
	img[n-2], img[n-1] = 0xFF, 0xD9
	return img
}

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func decodeConfig(t *testing.T, srcType, input, outDir string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Source = config.SourceConfig{Type: srcType, Options: map[string]any{"path": input}}
	cfg.Output.Dir = outDir
	require.NoError(t, cfg.ValidateAndApplyDefaults())
	return cfg
}

func TestSynthThenDecode(t *testing.T) {
	for _, ext := range []string{".txt", ".pcap"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			img := jpegLike(130) // 56 + 56 + 18
			imgPath := writeTemp(t, dir, "photo.jpg", img)
			capture := filepath.Join(dir, "pass"+ext)

			var out bytes.Buffer
			opts := synthOptions{output: capture, base: 16384, chunkSize: 56, port: 5005, noiseEvery: 1}
			require.NoError(t, runSynth(opts, []string{imgPath}, &out))
			assert.Contains(t, out.String(), "wrote 6 frames from 1 image(s)")

			srcType := "hex"
			if ext == ".pcap" {
				srcType = "pcap"
			}
			outDir := filepath.Join(dir, "images")
			out.Reset()
			require.NoError(t, runDecode(context.Background(), decodeConfig(t, srcType, capture, outDir), &out))

			assert.Contains(t, out.String(), "COMPLETE")
			assert.Contains(t, out.String(), "6 received, 3 parsed, 3 dropped, 3 misses")
			assert.Contains(t, out.String(), "1 completed, 0 incomplete")

			matches, err := filepath.Glob(filepath.Join(outDir, "GEOSCAN_*.jpg"))
			require.NoError(t, err)
			require.Len(t, matches, 1)
			got, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			assert.Equal(t, img, got)
		})
	}
}

func TestDecodeKeepsIncompleteImage(t *testing.T) {
	dir := t.TempDir()
	// Two chunks of equal size: the image never completes.
	imgPath := writeTemp(t, dir, "photo.jpg", jpegLike(112))
	capture := filepath.Join(dir, "pass.txt")
	require.NoError(t, runSynth(synthOptions{output: capture, base: 100, chunkSize: 56}, []string{imgPath}, &bytes.Buffer{}))

	outDir := filepath.Join(dir, "images")
	var out bytes.Buffer
	require.NoError(t, runDecode(context.Background(), decodeConfig(t, "hex", capture, outDir), &out))

	assert.Contains(t, out.String(), "PARTIAL")
	assert.Contains(t, out.String(), "0 completed, 1 incomplete")
	matches, _ := filepath.Glob(filepath.Join(outDir, "GEOSCAN_*.partial.jpg"))
	assert.Len(t, matches, 1)
}

func TestDecodeMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := runDecode(context.Background(), decodeConfig(t, "hex", filepath.Join(dir, "absent.txt"), dir), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSynthRejectsUnknownFormat(t *testing.T) {
	err := runSynth(synthOptions{output: "-", format: "kiss", chunkSize: 56}, []string{"x.jpg"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestSynthHexToStdout(t *testing.T) {
	img := jpegLike(10)
	imgPath := writeTemp(t, t.TempDir(), "photo.jpg", img)
	var out bytes.Buffer
	require.NoError(t, runSynth(synthOptions{output: "-", base: 4, chunkSize: 56}, []string{imgPath}, &out))

	want, err := decoder.EncodeChunk(core.Chunk{Marker: core.MarkerImage, Command: core.CmdImageStart, Offset: 4, Data: img})
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want)+"\n", out.String())
	assert.Equal(t, "0100100100040000ffd80e151c232a31ffd9\n", out.String())
}

func TestWithNoise(t *testing.T) {
	chunks := [][]byte{{1}, {2}, {3}, {4}, {5}}
	got, err := withNoise(chunks, 0)
	require.NoError(t, err)
	assert.Equal(t, chunks, got)

	got, err = withNoise(chunks, 2)
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.Equal(t, []byte{3}, got[3])
	assert.Equal(t, got[2], got[5], "same beacon frame")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeTemp(t, dir, "good.yaml", []byte(`satrx:
  source:
    type: pcap
    options:
      path: pass.pcap
      udp_port: 5005
  output:
    dir: out
`))
	var out bytes.Buffer
	require.NoError(t, runValidate(good, &out))
	assert.Equal(t, "VALID: source pcap, output out/*.jpg, base offset 4\n", out.String())

	badSource := writeTemp(t, dir, "bad_source.yaml", []byte(`satrx:
  source:
    type: udp
    options:
      listen: nowhere
`))
	assert.ErrorContains(t, runValidate(badSource, &out), "INVALID")

	badLevel := writeTemp(t, dir, "bad_level.yaml", []byte(`satrx:
  log:
    level: loud
`))
	assert.ErrorContains(t, runValidate(badLevel, &out), "INVALID")
}

func TestConfigDump(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runConfig(cfg, &out))
	assert.Contains(t, out.String(), "satrx:")
	assert.Contains(t, out.String(), "base_offset: 4")
	assert.Contains(t, out.String(), "id_prefix: GEOSCAN")
}
