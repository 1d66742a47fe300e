// Package decoder decodes GEOSCAN chunk frames.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/satrx/internal/core"
)

// Chunk header layout (little-endian):
//
//	byte 0-1: marker
//	byte 2:   declared_length (payload = declared_length - 6)
//	byte 3:   command
//	byte 4:   reserved
//	byte 5-6: offset
//	byte 7:   reserved
//	byte 8..: payload
const (
	offMarker   = 0
	offDLen     = 2
	offCmd      = 3
	offReserved = 4
	offOffset   = 5
	offReserve2 = 7
)

// ParseChunk decodes one GEOSCAN chunk.
// The returned payload is a copy; bytes past the declared payload are ignored.
func ParseChunk(raw []byte) (core.Chunk, error) {
	if len(raw) < core.MinRawLen {
		return core.Chunk{}, fmt.Errorf("%w: %d bytes", core.ErrChunkTooShort, len(raw))
	}

	dlen := raw[offDLen]
	if dlen < core.LengthBias {
		return core.Chunk{}, fmt.Errorf("%w: %d", core.ErrDeclaredLengthTooSmall, dlen)
	}

	payloadLen := int(dlen) - core.LengthBias
	if len(raw) < core.HeaderLen+payloadLen {
		return core.Chunk{}, fmt.Errorf("%w: need %d bytes, have %d",
			core.ErrChunkTruncated, core.HeaderLen+payloadLen, len(raw))
	}

	data := make([]byte, payloadLen)
	copy(data, raw[core.HeaderLen:core.HeaderLen+payloadLen])

	return core.Chunk{
		Marker:         binary.LittleEndian.Uint16(raw[offMarker : offMarker+2]),
		DeclaredLength: dlen,
		Command:        raw[offCmd],
		Reserved1:      raw[offReserved],
		Offset:         int(binary.LittleEndian.Uint16(raw[offOffset : offOffset+2])),
		Reserved2:      raw[offReserve2],
		Data:           data,
	}, nil
}

// EncodeChunk serializes a chunk into the wire layout.
// DeclaredLength is derived from the payload; Offset is truncated to 16 bits.
func EncodeChunk(c core.Chunk) ([]byte, error) {
	if len(c.Data) > core.MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", core.ErrPayloadTooLarge, len(c.Data), core.MaxPayloadLen)
	}

	buf := make([]byte, core.HeaderLen+len(c.Data))
	binary.LittleEndian.PutUint16(buf[offMarker:], c.Marker)
	buf[offDLen] = uint8(len(c.Data) + core.LengthBias)
	buf[offCmd] = c.Command
	buf[offReserved] = c.Reserved1
	binary.LittleEndian.PutUint16(buf[offOffset:], uint16(c.Offset))
	buf[offReserve2] = c.Reserved2
	copy(buf[core.HeaderLen:], c.Data)
	return buf, nil
}
