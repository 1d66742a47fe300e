// Package sink stores reconstructed images.
package sink

import "io"

// Image is the output resource for one image. Chunks are written at their
// rebased offsets; Close commits the image.
type Image interface {
	io.WriterAt
	io.Closer

	// Finish commits the image, flagging it partial when no end chunk was seen.
	Finish(partial bool) error
	// Abort discards everything written so far.
	Abort() error

	ID() string
	// Size is the highest byte position written.
	Size() int64
}

// Sink opens per-image outputs.
type Sink interface {
	Open(fileID string) (Image, error)
}

// extent tracks the highest written byte of an image.
type extent int64

func (e *extent) grow(off int64, n int) {
	if end := off + int64(n); end > int64(*e) {
		*e = extent(end)
	}
}
