// Package synth produces GEOSCAN downlink captures from image files, for
// ground testing the receiver without a satellite pass.
package synth

import (
	"fmt"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/core/decoder"
)

// DefaultChunkSize is the payload size of every chunk but the last.
const DefaultChunkSize = 56

// Options controls how an image is split.
type Options struct {
	BaseOffset uint16 // Origin announced by the image-start chunk
	ChunkSize  int    // Payload bytes per chunk (1..core.MaxPayloadLen)
}

// Split cuts img into encoded chunks: an image-start chunk carrying the base
// offset, then image-frame chunks addressed at base+position.
//
// The receiver only sees an end of image when the final chunk is shorter than
// the one before it and holds the whole EOI pair; images whose length is a
// multiple of the chunk size, or whose EOI straddles two chunks, stay open.
func Split(img []byte, opts Options) ([][]byte, error) {
	size := opts.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	if size < 1 || size > core.MaxPayloadLen {
		return nil, fmt.Errorf("chunk size %d out of range 1..%d", size, core.MaxPayloadLen)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if lastPos := (len(img) - 1) / size * size; lastPos > 0 && int(opts.BaseOffset)+lastPos > 0xFFFF {
		return nil, fmt.Errorf("image of %d bytes does not fit above base offset %d", len(img), opts.BaseOffset)
	}

	var frames [][]byte
	for pos := 0; pos < len(img); pos += size {
		end := min(pos+size, len(img))
		c := core.Chunk{
			Marker:  core.MarkerImage,
			Command: core.CmdImageFrame,
			Offset:  int(opts.BaseOffset) + pos,
			Data:    img[pos:end],
		}
		if pos == 0 {
			c.Command = core.CmdImageStart
			c.Offset = int(opts.BaseOffset)
		}
		raw, err := decoder.EncodeChunk(c)
		if err != nil {
			return nil, err
		}
		frames = append(frames, raw)
	}
	return frames, nil
}

// Noise returns a frame with a foreign marker, as other telemetry sharing the
// downlink would produce.
func Noise(marker uint16, payload []byte) ([]byte, error) {
	return decoder.EncodeChunk(core.Chunk{Marker: marker, Command: core.CmdImageFrame, Data: payload})
}
