package source

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/satrx/internal/config"
	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/synth"
)

var testFrames = [][]byte{
	{0x01, 0x00, 0x08, 0x01, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD8},
	{0x01, 0x00, 0x08, 0x05, 0x00, 0x06, 0x00, 0x00, 0xFF, 0xD9},
	{0x02, 0x00, 0x06, 0x05, 0x00, 0x00, 0x00, 0x00},
}

// drain runs src to completion and collects what it emitted.
func drain(t *testing.T, src Source) ([]core.RawChunk, error) {
	t.Helper()
	out := make(chan core.RawChunk, 64)
	err := src.Read(context.Background(), out)
	close(out)
	var got []core.RawChunk
	for raw := range out {
		got = append(got, raw)
	}
	return got, err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNew(t *testing.T) {
	assert.Equal(t, []string{"hex", "pcap", "udp"}, Types())
	assert.ElementsMatch(t, config.SourceTypes, Types())

	_, err := New(config.SourceConfig{Type: "sdr"})
	assert.ErrorIs(t, err, core.ErrSourceUnknown)

	src, err := New(config.SourceConfig{Type: "hex", Options: map[string]any{"path": "frames.txt"}})
	require.NoError(t, err)
	assert.Equal(t, "hex", src.Name())

	src, err = New(config.SourceConfig{Type: "pcap", Options: map[string]any{"path": "x.pcap", "udp_port": "5005"}})
	require.NoError(t, err, "env-provided strings decode weakly")
	assert.Equal(t, 5005, src.(*PCAPSource).opts.UDPPort)

	_, err = New(config.SourceConfig{Type: "hex", Options: map[string]any{"path": "x", "bogus": 1}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(config.SourceConfig{Type: "pcap"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(config.SourceConfig{Type: "udp", Options: map[string]any{"listen": "127.0.0.1:1"}}))
	assert.NoError(t, Check(config.SourceConfig{Type: "udp"}), "listen defaults")
	assert.NoError(t, Check(config.SourceConfig{Type: "udp", Options: map[string]any{"max_per_sender": 50, "rate_window": "2s"}}))
	assert.ErrorIs(t, Check(config.SourceConfig{Type: "udp", Options: map[string]any{"max_per_sender": -1}}), core.ErrConfigInvalid)
	assert.ErrorIs(t, Check(config.SourceConfig{Type: "udp", Options: map[string]any{"listen": "nope"}}), core.ErrConfigInvalid)
	assert.ErrorIs(t, Check(config.SourceConfig{Type: "hex"}), core.ErrConfigInvalid)
	assert.ErrorIs(t, Check(config.SourceConfig{Type: "pcap", Options: map[string]any{"path": "a", "udp_port": -1}}), core.ErrConfigInvalid)
	assert.ErrorIs(t, Check(config.SourceConfig{Type: "kiss"}), core.ErrSourceUnknown)
}

func TestHexSource(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, synth.WriteHex(&buf, testFrames))
	dump := "# pass 2024-05-01\n\n" + buf.String() + "not hex\n" + "01 00 06 05 00 00 00 00\n"

	src, err := NewHex(HexOptions{Path: writeFile(t, "frames.txt", []byte(dump))})
	require.NoError(t, err)

	got, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, f := range testFrames {
		assert.Equal(t, f, got[i].Data)
		assert.Equal(t, TypeHex, got[i].Source)
	}
	assert.Equal(t, []byte{0x01, 0x00, 0x06, 0x05, 0x00, 0x00, 0x00, 0x00}, got[3].Data)
}

func TestHexSourceMissingFile(t *testing.T) {
	src, err := NewHex(HexOptions{Path: filepath.Join(t.TempDir(), "absent.txt")})
	require.NoError(t, err)
	_, err = drain(t, src)
	assert.Error(t, err)
}

func TestHexSourceCancelled(t *testing.T) {
	src, err := NewHex(HexOptions{Path: "unused"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan core.RawChunk) // unbuffered and never read
	err = src.scan(ctx, bytes.NewBufferString("0100060500000000\n"), out)
	assert.ErrorIs(t, err, context.Canceled)
}

func writePCAP(t *testing.T, port uint16) string {
	t.Helper()
	var buf bytes.Buffer
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, synth.WritePCAP(&buf, testFrames, synth.PCAPOptions{SrcPort: 40000, DstPort: port, Start: start, Gap: time.Second}))
	return writeFile(t, "pass.pcap", buf.Bytes())
}

func TestPCAPSource(t *testing.T) {
	path := writePCAP(t, 5005)

	src, err := NewPCAP(PCAPOptions{Path: path})
	require.NoError(t, err)
	got, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, got, len(testFrames))
	for i, f := range testFrames {
		assert.Equal(t, f, got[i].Data)
		assert.Equal(t, TypePCAP, got[i].Source)
	}
	assert.True(t, got[1].Timestamp.Equal(time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)))
}

func TestPCAPSourcePortFilter(t *testing.T) {
	path := writePCAP(t, 5005)

	src, err := NewPCAP(PCAPOptions{Path: path, UDPPort: 5005})
	require.NoError(t, err)
	got, err := drain(t, src)
	require.NoError(t, err)
	assert.Len(t, got, len(testFrames))

	src, err = NewPCAP(PCAPOptions{Path: path, UDPPort: 6000})
	require.NoError(t, err)
	got, err = drain(t, src)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPCAPSourceErrors(t *testing.T) {
	_, err := NewPCAP(PCAPOptions{Path: "x", UDPPort: 70000})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	src, err := NewPCAP(PCAPOptions{Path: writeFile(t, "junk.pcap", []byte("definitely not a capture"))})
	require.NoError(t, err)
	_, err = drain(t, src)
	assert.Error(t, err)
}

func TestUDPSource(t *testing.T) {
	src, err := NewUDP(UDPOptions{Listen: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan core.RawChunk, 8)
	done := make(chan error, 1)
	go func() { done <- src.Read(ctx, out) }()

	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(testFrames[0])
	require.NoError(t, err)

	select {
	case raw := <-out:
		assert.Equal(t, testFrames[0], raw.Data)
		assert.Equal(t, TypeUDP, raw.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after cancel")
	}
}

func TestUDPSourceRateLimit(t *testing.T) {
	src, err := NewUDP(UDPOptions{Listen: "127.0.0.1:0", MaxPerSender: 1, RateWindow: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan core.RawChunk, 8)
	go func() { _ = src.Read(ctx, out) }()

	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	for _, f := range testFrames {
		_, err = conn.Write(f)
		require.NoError(t, err)
	}

	select {
	case raw := <-out:
		assert.Equal(t, testFrames[0], raw.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}
	assert.Eventually(t, func() bool { return src.limiter.Rejected() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, out)
}
