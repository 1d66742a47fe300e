package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/satrx/internal/assembler"
	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/core/decoder"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/receiver"
	"firestige.xyz/satrx/internal/sink"
	"firestige.xyz/satrx/internal/source"
	"firestige.xyz/satrx/internal/synth"
)

// sliceSource emits fixed frames, then returns err.
type sliceSource struct {
	frames [][]byte
	err    error
}

func (s *sliceSource) Name() string { return "slice" }

func (s *sliceSource) Read(ctx context.Context, out chan<- core.RawChunk) error {
	for _, f := range s.frames {
		select {
		case out <- core.RawChunk{Data: f, Timestamp: time.Now(), Source: "slice"}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

// blockingSource emits its frames and then waits for cancellation, like a
// live listener.
type blockingSource struct {
	sliceSource
}

func (s *blockingSource) Read(ctx context.Context, out chan<- core.RawChunk) error {
	if err := s.sliceSource.Read(ctx, out); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func sequentialIDs() receiver.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("IMG_%d", n)
	}
}

func testImage(n int, seed byte) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = seed + byte(i%50)
	}
	img[0], img[1] = 0xFF, 0xD8
	img[n-2], img[n-1] = 0xFF, 0xD9
	return img
}

func frames(t *testing.T, img []byte, base uint16) [][]byte {
	t.Helper()
	f, err := synth.Split(img, synth.Options{BaseOffset: base, ChunkSize: 40})
	require.NoError(t, err)
	return f
}

func build(t *testing.T, src source.Source, keepPartial bool) (*Pipeline, *sink.MemorySink) {
	t.Helper()
	mem := sink.NewMemorySink()
	p, err := NewBuilder().
		WithSource(src).
		WithReceiver(receiver.New(receiver.Config{IDGenerator: sequentialIDs()})).
		WithSink(mem).
		WithAssembler(assembler.Config{KeepPartial: keepPartial}).
		WithBufferSize(4).
		Build()
	require.NoError(t, err)
	return p, mem
}

func TestPipeline_Run(t *testing.T) {
	a, b := testImage(100, 1), testImage(90, 3)
	var all [][]byte
	all = append(all, frames(t, a, 1000)...) // 40,40,20
	beacon, err := synth.Noise(7, []byte{1, 2, 3})
	require.NoError(t, err)
	all = append(all, beacon)                // foreign marker
	all = append(all, []byte{0x01})          // truncated
	all = append(all, frames(t, b, 5000)...) // 40,40,10
	all = append(all, frames(t, testImage(60, 5), 9000)[0])

	p, mem := build(t, &sliceSource{frames: all}, true)
	require.NoError(t, p.Run(context.Background()))

	images := mem.Images()
	require.Len(t, images, 3)
	assert.Equal(t, sink.Stored{ID: "IMG_1", Data: a}, images[0])
	assert.Equal(t, sink.Stored{ID: "IMG_2", Data: b}, images[1])
	assert.Equal(t, "IMG_3", images[2].ID)
	assert.True(t, images[2].Partial, "left open when the source ended")

	assert.Equal(t, Stats{
		Received:  9,
		Parsed:    7,
		Dropped:   2,
		Written:   7,
		Completed: 2,
		Abandoned: 1,
	}, p.Stats())
}

func TestPipeline_SourceError(t *testing.T) {
	boom := errors.New("device unplugged")
	p, mem := build(t, &sliceSource{frames: frames(t, testImage(100, 1), 10)[:2], err: boom}, false)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mem.Images(), "incomplete images are discarded")
	assert.Zero(t, p.Stats().Completed)
	assert.Equal(t, uint64(1), p.Stats().Abandoned)
}

func TestPipeline_StrayFrameIsNotAbandoned(t *testing.T) {
	all := frames(t, testImage(100, 1), 1000)
	stray, err := decoder.EncodeChunk(core.Chunk{Marker: core.MarkerImage, Command: core.CmdImageFrame, Offset: 1, Data: []byte{9}})
	require.NoError(t, err)
	all = append(all, stray)

	mem := sink.NewMemorySink()
	p, err := NewBuilder().
		WithSource(&sliceSource{frames: all}).
		WithReceiver(receiver.New(receiver.Config{IDGenerator: sequentialIDs()})).
		WithSink(mem).
		WithLogger(log.GetLogger()).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, mem.Images(), 1)
	assert.Equal(t, Stats{
		Received:  4,
		Parsed:    4,
		Dropped:   1,
		Written:   3,
		Completed: 1,
	}, p.Stats())
}

func TestPipeline_Stop(t *testing.T) {
	src := &blockingSource{sliceSource{frames: frames(t, testImage(100, 1), 10)[:2]}}
	p, mem := build(t, src, true)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return p.Stats().Written == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	images := mem.Images()
	require.Len(t, images, 1)
	assert.True(t, images[0].Partial)
	assert.Len(t, images[0].Data, 80)
}

func TestPipeline_ContextCancel(t *testing.T) {
	p, _ := build(t, &blockingSource{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_RequiresParts(t *testing.T) {
	_, err := New(Config{Source: &sliceSource{}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	assert.NoError(t, (&Pipeline{}).Stop(), "stop before start")
}
