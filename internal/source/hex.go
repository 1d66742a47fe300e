package source

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/log"
)

const TypeHex = "hex"

// HexOptions configures a hex frame dump source.
type HexOptions struct {
	Path string `mapstructure:"path"` // "-" reads stdin
}

// HexSource reads one hex-encoded frame per line, as demodulators write
// their frame dumps. Bytes may be separated by spaces. Blank lines and lines
// starting with '#' are skipped.
type HexSource struct {
	opts   HexOptions
	logger log.Logger
}

func (o *HexOptions) validate() error {
	if o.Path == "" {
		return fmt.Errorf("%w: hex source requires path", core.ErrConfigInvalid)
	}
	return nil
}

func NewHex(opts HexOptions) (*HexSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &HexSource{
		opts:   opts,
		logger: log.GetLogger().WithFields(map[string]interface{}{"source": TypeHex, "path": opts.Path}),
	}, nil
}

func (s *HexSource) Name() string { return TypeHex }

// Read implements Source.
func (s *HexSource) Read(ctx context.Context, out chan<- core.RawChunk) error {
	var r io.Reader = os.Stdin
	if s.opts.Path != "-" {
		f, err := os.Open(s.opts.Path)
		if err != nil {
			return fmt.Errorf("failed to open frame dump %s: %w", s.opts.Path, err)
		}
		defer f.Close()
		r = f
	}
	return s.scan(ctx, r, out)
}

func (s *HexSource) scan(ctx context.Context, r io.Reader, out chan<- core.RawChunk) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo, frames, bad := 0, 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		data, err := hex.DecodeString(strings.Join(strings.Fields(line), ""))
		if err != nil {
			bad++
			s.logger.WithField("line", lineNo).WithError(err).Warn("skipping undecodable line")
			continue
		}
		frames++
		if err := emit(ctx, out, core.RawChunk{Data: data, Timestamp: time.Now(), Source: TypeHex}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read frame dump: %w", err)
	}
	s.logger.WithFields(map[string]interface{}{"frames": frames, "bad_lines": bad}).Info("frame dump read")
	return nil
}
