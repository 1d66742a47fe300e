package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"firestige.xyz/satrx/internal/core"
)

const (
	partSuffix    = ".part"
	partialSuffix = ".partial"
)

// FileSink writes each image to <dir>/<fileID><ext>. Images being received
// live under a ".part" name and are renamed when finished.
type FileSink struct {
	dir string
	ext string
}

// NewFileSink creates the output directory if needed.
func NewFileSink(dir, ext string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, ext: ext}, nil
}

// Path returns where a finished image is stored.
func (s *FileSink) Path(fileID string, partial bool) string {
	if partial {
		return filepath.Join(s.dir, fileID+partialSuffix+s.ext)
	}
	return filepath.Join(s.dir, fileID+s.ext)
}

// Open implements Sink.
func (s *FileSink) Open(fileID string) (Image, error) {
	final := s.Path(fileID, false)
	tmp := final + partSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", fileID, err)
	}
	return &fileImage{id: fileID, f: f, tmp: tmp, final: final, partial: s.Path(fileID, true)}, nil
}

type fileImage struct {
	id      string
	f       *os.File
	tmp     string
	final   string
	partial string
	size    extent
}

func (i *fileImage) ID() string  { return i.id }
func (i *fileImage) Size() int64 { return int64(i.size) }

func (i *fileImage) WriteAt(p []byte, off int64) (int, error) {
	if i.f == nil {
		return 0, core.ErrImageNotOpen
	}
	n, err := i.f.WriteAt(p, off)
	i.size.grow(off, n)
	return n, err
}

func (i *fileImage) Close() error { return i.Finish(false) }

func (i *fileImage) Finish(partial bool) error {
	if i.f == nil {
		return core.ErrImageNotOpen
	}
	err := i.f.Close()
	i.f = nil
	if err != nil {
		return fmt.Errorf("close image %s: %w", i.id, err)
	}

	dst := i.final
	if partial {
		dst = i.partial
	}
	if err := os.Rename(i.tmp, dst); err != nil {
		return fmt.Errorf("commit image %s: %w", i.id, err)
	}
	return nil
}

func (i *fileImage) Abort() error {
	if i.f != nil {
		_ = i.f.Close()
		i.f = nil
	}
	if err := os.Remove(i.tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard image %s: %w", i.id, err)
	}
	return nil
}
