package sink

import (
	"sync"

	"firestige.xyz/satrx/internal/core"
)

// Stored is a finished image held by MemorySink.
type Stored struct {
	ID      string
	Data    []byte
	Partial bool
}

// MemorySink keeps finished images in memory, in completion order.
type MemorySink struct {
	mu     sync.Mutex
	images []Stored
	open   int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Open implements Sink.
func (s *MemorySink) Open(fileID string) (Image, error) {
	s.mu.Lock()
	s.open++
	s.mu.Unlock()
	return &memoryImage{id: fileID, sink: s}, nil
}

// Images returns a snapshot of the finished images.
func (s *MemorySink) Images() []Stored {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stored, len(s.images))
	copy(out, s.images)
	return out
}

// OpenCount returns how many images are open and not yet finished or aborted.
func (s *MemorySink) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type memoryImage struct {
	id     string
	buf    []byte
	size   extent
	closed bool
	sink   *MemorySink
}

func (i *memoryImage) ID() string  { return i.id }
func (i *memoryImage) Size() int64 { return int64(i.size) }

func (i *memoryImage) WriteAt(p []byte, off int64) (int, error) {
	if i.closed {
		return 0, core.ErrImageNotOpen
	}
	if end := int(off) + len(p); end > len(i.buf) {
		grown := make([]byte, end)
		copy(grown, i.buf)
		i.buf = grown
	}
	copy(i.buf[off:], p)
	i.size.grow(off, len(p))
	return len(p), nil
}

func (i *memoryImage) Close() error { return i.Finish(false) }

func (i *memoryImage) Finish(partial bool) error {
	if i.closed {
		return core.ErrImageNotOpen
	}
	i.closed = true
	i.sink.mu.Lock()
	i.sink.images = append(i.sink.images, Stored{ID: i.id, Data: i.buf, Partial: partial})
	i.sink.open--
	i.sink.mu.Unlock()
	return nil
}

func (i *memoryImage) Abort() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.sink.mu.Lock()
	i.sink.open--
	i.sink.mu.Unlock()
	return nil
}
