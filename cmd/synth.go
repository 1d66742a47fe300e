package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/synth"
)

var synthCmd = &cobra.Command{
	Use:   "synth [flags] image.jpg...",
	Short: "Generate a downlink capture from image files",
	Long: `Split image files into GEOSCAN chunks and write them as a hex frame dump
or a pcap capture of UDP datagrams, for exercising decode without a pass.

The format follows the output extension (.pcap writes pcap,
anything else hex) unless --format is given.

Examples:
  satrx synth -o pass.txt photo.jpg
  satrx synth -o pass.pcap --base 16384 --noise-every 3 a.jpg b.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSynth(synthFlags, args, cmd.OutOrStdout())
	},
}

type synthOptions struct {
	output     string
	format     string
	base       uint16
	chunkSize  int
	port       uint16
	noiseEvery int
}

var synthFlags synthOptions

func init() {
	f := synthCmd.Flags()
	f.StringVarP(&synthFlags.output, "output", "o", "-", "output file (- for stdout)")
	f.StringVar(&synthFlags.format, "format", "", "hex | pcap (default from output extension)")
	f.Uint16Var(&synthFlags.base, "base", 16384, "base offset announced by the image-start chunk")
	f.IntVar(&synthFlags.chunkSize, "chunk-size", synth.DefaultChunkSize, "payload bytes per chunk")
	f.Uint16Var(&synthFlags.port, "port", 5005, "UDP destination port (pcap format)")
	f.IntVar(&synthFlags.noiseEvery, "noise-every", 0, "insert a non-image frame after every N chunks (0 = none)")
}

func runSynth(opts synthOptions, images []string, stdout io.Writer) error {
	format := opts.format
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.output)) {
		case ".pcap":
			format = "pcap"
		default:
			format = "hex"
		}
	}
	if format != "hex" && format != "pcap" {
		return fmt.Errorf("unknown format %q", format)
	}

	var frames [][]byte
	for _, path := range images {
		img, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		chunks, err := synth.Split(img, synth.Options{BaseOffset: opts.base, ChunkSize: opts.chunkSize})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		chunks, err = withNoise(chunks, opts.noiseEvery)
		if err != nil {
			return err
		}
		frames = append(frames, chunks...)
	}

	w := stdout
	if opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	var err error
	if format == "pcap" {
		err = synth.WritePCAP(w, frames, synth.PCAPOptions{SrcPort: 40000, DstPort: opts.port, Start: time.Now().UTC()})
	} else {
		err = synth.WriteHex(w, frames)
	}
	if err != nil {
		return err
	}
	if opts.output != "-" {
		fmt.Fprintf(stdout, "wrote %d frames from %d image(s) to %s\n", len(frames), len(images), opts.output)
	}
	return nil
}

// withNoise interleaves beacon-like frames with a foreign marker.
func withNoise(chunks [][]byte, every int) ([][]byte, error) {
	if every <= 0 {
		return chunks, nil
	}
	beacon, err := synth.Noise(core.MarkerImage+1, []byte("BEACON"))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(chunks)+len(chunks)/every)
	for i, c := range chunks {
		out = append(out, c)
		if (i+1)%every == 0 {
			out = append(out, beacon)
		}
	}
	return out, nil
}
