package receiver

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"firestige.xyz/satrx/internal/core"
)

// DefaultIDPrefix prefixes generated file ids.
const DefaultIDPrefix = "GEOSCAN"

// IDGenerator returns a fresh file id on every call.
type IDGenerator func() string

// TimestampIDs returns ids of the form PREFIX_<utc time>_<random>.
// The random tail is taken from a UUIDv7 so ids minted within the same
// microsecond still differ.
func TimestampIDs(prefix string) IDGenerator {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return func() string {
		now := time.Now().UTC()
		u, err := uuid.NewV7()
		if err != nil {
			u = uuid.New()
		}
		s := u.String()
		return fmt.Sprintf("%s_%s_%s", prefix, now.Format("2006-01-02_15-04-05.000000"), s[len(s)-12:])
	}
}

// chunkHash is the duplicate-detection hash over the payload.
func chunkHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// isImageStart reports whether the chunk opens a new image: placed at 0,
// starts with SOI and differs from the chunk seen just before it.
func isImageStart(c *core.Chunk, h uint64, st *State) bool {
	if c.Offset != 0 || !bytes.HasPrefix(c.Data, []byte(core.SOI)) {
		return false
	}
	return !st.HasLastChunkHash || h != st.LastChunkHash
}

// identify assigns the chunk to a file id, minting a new one on an image
// boundary or when no image is active.
func identify(c *core.Chunk, st *State, gen IDGenerator) (fid string, started bool) {
	h := chunkHash(c.Data)
	if isImageStart(c, h, st) {
		st.CurrentFileID = gen()
		started = true
	}

	st.LastChunkHash = h
	st.HasLastChunkHash = true

	if st.CurrentFileID == "" {
		st.CurrentFileID = gen()
		started = true
	}
	return st.CurrentFileID, started
}
