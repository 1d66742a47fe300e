package core

// Wire constants of the GEOSCAN image protocol.
const (
	// HeaderLen is the fixed header size: marker(2) dlen(1) cmd(1) x1(1) offset(2) x2(1).
	HeaderLen = 8
	// MinRawLen is the shortest input the parser will look at.
	MinRawLen = 7
	// LengthBias is subtracted from declared_length to get the payload size.
	LengthBias = 6
	// MaxPayloadLen is the largest payload a uint8 declared_length can describe.
	MaxPayloadLen = 0xFF - LengthBias

	MarkerImage uint16 = 1

	CmdImageStart uint8 = 1
	CmdImageFrame uint8 = 5

	// DefaultBaseOffset is the rebasing origin used until the first image-start chunk.
	DefaultBaseOffset uint16 = 4
)

// JPEG marker byte pairs used as boundary heuristics.
const (
	SOI = "\xFF\xD8"
	EOI = "\xFF\xD9"
)
