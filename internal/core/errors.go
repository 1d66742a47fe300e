// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every chunk decoding failure.
	ErrParse = errors.New("satrx: chunk parse failed")

	ErrChunkTooShort          = fmt.Errorf("%w: input too short", ErrParse)
	ErrDeclaredLengthTooSmall = fmt.Errorf("%w: declared length below header bias", ErrParse)
	ErrChunkTruncated         = fmt.Errorf("%w: payload truncated", ErrParse)

	// Encoding errors
	ErrPayloadTooLarge = errors.New("satrx: payload too large for declared length")

	// Assembly errors
	ErrOffsetOutOfRange = errors.New("satrx: chunk offset out of range")
	ErrImageNotOpen     = errors.New("satrx: image not open")

	// Source errors
	ErrSourceUnknown = errors.New("satrx: unknown source type")
	ErrSourceClosed  = errors.New("satrx: source closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("satrx: invalid configuration")
)
