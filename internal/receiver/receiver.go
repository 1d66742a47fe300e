// Package receiver implements the GEOSCAN image chunk receiver.
//
// A GeoscanReceiver turns raw downlink frames into placed image chunks:
//
//  1. ParseChunk decodes the frame, drops non-image traffic and rebases the
//     chunk offset against the origin declared by the last image-start chunk.
//  2. FileID assigns the chunk to a logical image, detecting boundaries from
//     offset 0 + SOI + a payload hash that differs from the previous chunk.
//  3. IsLastChunk infers end of image from a shrinking payload carrying EOI.
//  4. OnCompletion releases the caller's output and returns to idle.
//
// The host calls these in that order, one chunk at a time. A receiver holds
// the state of exactly one downlink stream and does no locking.
package receiver

import (
	"io"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/core/decoder"
	"firestige.xyz/satrx/internal/log"
)

// Receiver is the surface the assembly host drives for every chunk.
type Receiver interface {
	// ParseChunk returns false when the frame is malformed or not image traffic.
	ParseChunk(raw []byte) (*core.Chunk, bool)
	FileID(c *core.Chunk) string
	IsLastChunk(c *core.Chunk) bool
	// OnCompletion must be called once per completed image, after its last chunk is written.
	OnCompletion(res io.Closer) error
}

// Config configures a GeoscanReceiver.
type Config struct {
	BaseOffset  uint16      // Default rebasing origin (0 = core.DefaultBaseOffset)
	IDPrefix    string      // Prefix for generated file ids
	IDGenerator IDGenerator // Overrides IDPrefix when set
	Logger      log.Logger
}

// GeoscanReceiver implements Receiver for GEOSCAN image downlinks.
type GeoscanReceiver struct {
	state  *State
	newID  IDGenerator
	logger log.Logger
}

var _ Receiver = (*GeoscanReceiver)(nil)

// New creates a receiver with fresh session state.
func New(cfg Config) *GeoscanReceiver {
	base := cfg.BaseOffset
	if base == 0 {
		base = core.DefaultBaseOffset
	}
	gen := cfg.IDGenerator
	if gen == nil {
		gen = TimestampIDs(cfg.IDPrefix)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &GeoscanReceiver{
		state:  NewState(base),
		newID:  gen,
		logger: logger.WithField("component", "receiver"),
	}
}

// State exposes the session state for diagnostics.
func (r *GeoscanReceiver) State() *State { return r.state }

// ParseChunk implements Receiver.
func (r *GeoscanReceiver) ParseChunk(raw []byte) (*core.Chunk, bool) {
	c, err := decoder.ParseChunk(raw)
	if err != nil {
		r.logger.WithError(err).Debug("dropping malformed chunk")
		return nil, false
	}

	if !r.accept(&c) {
		return nil, false
	}

	r.state.rebase(&c)
	return &c, true
}

// accept passes image-protocol chunks and counts everything else as a miss.
func (r *GeoscanReceiver) accept(c *core.Chunk) bool {
	if c.Marker == core.MarkerImage {
		return true
	}
	r.state.MissCount++
	if r.logger.IsTraceEnabled() {
		r.logger.WithFields(map[string]interface{}{
			"marker": c.Marker,
			"misses": r.state.MissCount,
		}).Trace("ignoring non-image chunk")
	}
	return false
}

// FileID implements Receiver.
func (r *GeoscanReceiver) FileID(c *core.Chunk) string {
	fid, started := identify(c, r.state, r.newID)
	if started {
		r.logger.WithField("file_id", fid).Info("new image")
	}
	return fid
}

// IsLastChunk implements Receiver.
func (r *GeoscanReceiver) IsLastChunk(c *core.Chunk) bool {
	return isLast(c, r.state)
}

// OnCompletion implements Receiver. The state is reset even if closing fails.
func (r *GeoscanReceiver) OnCompletion(res io.Closer) error {
	fid := r.state.CurrentFileID
	var err error
	if res != nil {
		err = res.Close()
	}
	r.state.reset()

	if err != nil {
		r.logger.WithField("file_id", fid).WithError(err).Error("failed to release image output")
		return err
	}
	r.logger.WithField("file_id", fid).Info("image complete")
	return nil
}

// MissCount returns how many frames were discarded for a non-image marker.
func (r *GeoscanReceiver) MissCount() uint64 { return r.state.MissCount }
