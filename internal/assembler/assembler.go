// Package assembler places received chunks into per-image outputs.
//
// It is the host side of receiver.Receiver: for every frame it calls
// ParseChunk, FileID, writes the payload into the image at its rebased offset,
// then IsLastChunk and, on a hit, OnCompletion with the image as resource.
package assembler

import (
	"fmt"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/metrics"
	"firestige.xyz/satrx/internal/receiver"
	"firestige.xyz/satrx/internal/sink"
)

// Outcome is what happened to one frame.
type Outcome int

const (
	Dropped   Outcome = iota // malformed, foreign marker, out of range or unwritable
	Written                  // payload placed into an open image
	Completed                // payload placed and the image finished
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case Written:
		return "written"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Event reports a finished image.
type Event struct {
	FileID    string
	Size      int64
	Partial   bool // closed without an end-of-image chunk
	Discarded bool // partial and removed rather than kept
	Err       error
}

// Config configures an Assembler.
type Config struct {
	MaxImageSize int  // Exclusive upper bound on offset+len(payload)
	KeepPartial  bool // Keep images that never completed instead of discarding them
	OnImage      func(Event)
	Logger       log.Logger
}

// missCounter is implemented by receivers that count foreign-marker frames.
type missCounter interface {
	MissCount() uint64
}

// Assembler drives one Receiver. Like the receiver it serves a single stream
// and must not be used concurrently.
type Assembler struct {
	rx     receiver.Receiver
	sink   sink.Sink
	cfg    Config
	logger log.Logger

	current sink.Image
}

// New creates an Assembler.
func New(rx receiver.Receiver, s sink.Sink, cfg Config) *Assembler {
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 0x10000 + core.MaxPayloadLen
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Assembler{
		rx:     rx,
		sink:   s,
		cfg:    cfg,
		logger: logger.WithField("component", "assembler"),
	}
}

// Process runs one frame through the receiver and places its payload.
// Errors describe why a frame was dropped; they are never fatal.
func (a *Assembler) Process(raw core.RawChunk) (Outcome, error) {
	misses := a.misses()
	c, ok := a.rx.ParseChunk(raw.Data)
	if !ok {
		if a.misses() != misses {
			metrics.ChunksMissedTotal.Inc()
		}
		metrics.ChunksDroppedTotal.WithLabelValues(metrics.ReasonParse).Inc()
		return Dropped, nil
	}

	fid := a.rx.FileID(c)
	if c.Offset < 0 || c.Offset+len(c.Data) > a.cfg.MaxImageSize {
		metrics.ChunksDroppedTotal.WithLabelValues(metrics.ReasonOffset).Inc()
		return Dropped, fmt.Errorf("%w: offset %d len %d (limit %d)",
			core.ErrOffsetOutOfRange, c.Offset, len(c.Data), a.cfg.MaxImageSize)
	}

	img, err := a.imageFor(fid)
	if err != nil {
		metrics.ChunksDroppedTotal.WithLabelValues(metrics.ReasonWrite).Inc()
		return Dropped, err
	}

	if _, err := img.WriteAt(c.Data, int64(c.Offset)); err != nil {
		metrics.ChunksDroppedTotal.WithLabelValues(metrics.ReasonWrite).Inc()
		return Dropped, fmt.Errorf("write %s at %d: %w", fid, c.Offset, err)
	}
	metrics.ChunksWrittenTotal.Inc()

	if !a.rx.IsLastChunk(c) {
		return Written, nil
	}

	size := img.Size()
	a.current = nil
	err = a.rx.OnCompletion(img)
	metrics.ImagesCompletedTotal.Inc()
	metrics.ImageBytes.Observe(float64(size))
	a.emit(Event{FileID: fid, Size: size, Err: err})
	return Completed, err
}

// Close finishes the image still being received, if any.
func (a *Assembler) Close() error {
	return a.abandon()
}

// imageFor returns the open image for fid, retiring a superseded one first.
func (a *Assembler) imageFor(fid string) (sink.Image, error) {
	if a.current != nil && a.current.ID() == fid {
		return a.current, nil
	}
	if err := a.abandon(); err != nil {
		a.logger.WithError(err).Warn("failed to close superseded image")
	}

	img, err := a.sink.Open(fid)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", fid, err)
	}
	a.current = img
	return img, nil
}

// abandon closes the current image without an end-of-image chunk.
func (a *Assembler) abandon() error {
	img := a.current
	if img == nil {
		return nil
	}
	a.current = nil
	if img.Size() == 0 {
		return img.Abort()
	}
	metrics.ImagesAbandonedTotal.Inc()

	logger := a.logger.WithFields(map[string]interface{}{"file_id": img.ID(), "size": img.Size()})
	if !a.cfg.KeepPartial {
		logger.Warn("discarding incomplete image")
		err := img.Abort()
		a.emit(Event{FileID: img.ID(), Size: img.Size(), Partial: true, Discarded: true, Err: err})
		return err
	}

	logger.Warn("keeping incomplete image")
	err := img.Finish(true)
	a.emit(Event{FileID: img.ID(), Size: img.Size(), Partial: true, Err: err})
	return err
}

func (a *Assembler) misses() uint64 {
	if mc, ok := a.rx.(missCounter); ok {
		return mc.MissCount()
	}
	return 0
}

func (a *Assembler) emit(ev Event) {
	if a.cfg.OnImage != nil {
		a.cfg.OnImage(ev)
	}
}
