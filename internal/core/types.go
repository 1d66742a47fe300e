// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawChunk is one downlink frame as delivered by a source, before decoding.
type RawChunk struct {
	Data      []byte    // Frame bytes, owned by the receiver of the chunk
	Timestamp time.Time // Reception timestamp (capture time for pcap input)
	Source    string    // Source label, e.g. "pcap", "udp:0.0.0.0:9100"
}

// Chunk is a decoded GEOSCAN image chunk.
//
// Offset holds the wire value right after decoding and the buffer-relative
// placement once the receiver has rebased it. It is signed because rebasing
// may underflow; callers must bounds-check before writing.
type Chunk struct {
	Marker         uint16
	DeclaredLength uint8
	Command        uint8
	Reserved1      uint8
	Offset         int
	Reserved2      uint8
	Data           []byte
}
