package receiver

import (
	"bytes"

	"firestige.xyz/satrx/internal/core"
)

// isLast records the chunk size and reports a probable end of image:
// the payload shrank relative to the previous chunk and carries EOI.
func isLast(c *core.Chunk, st *State) bool {
	prev := st.PrevChunkDataLen
	st.PrevChunkDataLen = len(c.Data)
	return st.PrevChunkDataLen < prev && bytes.Contains(c.Data, []byte(core.EOI))
}
