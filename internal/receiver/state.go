package receiver

import "firestige.xyz/satrx/internal/core"

// State is the per-session receiver state. One State belongs to exactly one
// downlink stream and is not safe for concurrent use.
type State struct {
	BaseOffset    uint16
	CurrentFileID string

	LastChunkHash    uint64
	HasLastChunkHash bool

	// PrevChunkDataLen starts at -1 so the first chunk never reads as a size decrease.
	PrevChunkDataLen int

	MissCount uint64

	defaultBase uint16
}

// NewState creates session state with the given default rebasing origin.
func NewState(defaultBase uint16) *State {
	return &State{
		BaseOffset:       defaultBase,
		PrevChunkDataLen: -1,
		defaultBase:      defaultBase,
	}
}

// Active reports whether an image is currently being received.
func (s *State) Active() bool { return s.CurrentFileID != "" }

// rebase converts the chunk's wire offset into a buffer-relative one.
// An image-start chunk carries the new origin and is always placed at 0.
func (s *State) rebase(c *core.Chunk) {
	if c.Command == core.CmdImageStart {
		s.BaseOffset = uint16(c.Offset)
		c.Offset = 0
		return
	}
	c.Offset -= int(s.BaseOffset)
}

// reset ends the current image. PrevChunkDataLen and the last chunk hash
// survive so the next image is compared against this one.
func (s *State) reset() {
	s.CurrentFileID = ""
	s.BaseOffset = s.defaultBase
}
