package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/satrx/internal/assembler"
	"firestige.xyz/satrx/internal/config"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/metrics"
	"firestige.xyz/satrx/internal/pipeline"
	"firestige.xyz/satrx/internal/receiver"
	"firestige.xyz/satrx/internal/sink"
	"firestige.xyz/satrx/internal/source"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Reassemble images from a frame source",
	Long: `Run frames from the configured source through the receiver and write
every reconstructed image to the output directory.

File sources run until the end of input; the udp source runs until
interrupted (SIGINT, SIGTERM). Images still open at the end are kept as
<id>.partial<ext> unless assembler.keep_partial is false.

Examples:
  satrx decode -s hex -i pass.txt -o images/
  satrx decode -s pcap -i pass.pcap --udp-port 5005
  satrx decode -c satrx.yaml -s udp --listen :5005`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyDecodeFlags(cfg, cmd.Flags()); err != nil {
			return err
		}
		if err := log.Init(cfg.Log); err != nil {
			return err
		}
		defer log.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDecode(ctx, cfg, cmd.OutOrStdout())
	},
}

var decodeFlags struct {
	source  string
	input   string
	listen  string
	udpPort int
	output  string
	metrics bool
}

func init() {
	f := decodeCmd.Flags()
	f.StringVarP(&decodeFlags.source, "source", "s", "", "source type: pcap | hex | udp")
	f.StringVarP(&decodeFlags.input, "input", "i", "", "input file for pcap/hex sources (- for stdin)")
	f.StringVar(&decodeFlags.listen, "listen", "", "listen address for the udp source")
	f.IntVar(&decodeFlags.udpPort, "udp-port", 0, "only replay datagrams sent to this port (pcap source)")
	f.StringVarP(&decodeFlags.output, "output", "o", "", "output directory")
	f.BoolVar(&decodeFlags.metrics, "metrics", false, "serve Prometheus metrics on metrics.listen")
}

// applyDecodeFlags overlays the flags the user set onto cfg.
func applyDecodeFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("source") {
		cfg.Source.Type = decodeFlags.source
		cfg.Source.Options = map[string]any{}
	}
	if flags.Changed("input") {
		cfg.Source.Options["path"] = decodeFlags.input
	}
	if flags.Changed("listen") {
		cfg.Source.Options["listen"] = decodeFlags.listen
	}
	if flags.Changed("udp-port") {
		cfg.Source.Options["udp_port"] = decodeFlags.udpPort
	}
	if flags.Changed("output") {
		cfg.Output.Dir = decodeFlags.output
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = decodeFlags.metrics
	}
	return cfg.ValidateAndApplyDefaults()
}

// runDecode runs one decoding session and prints a line per finished image
// followed by a summary.
func runDecode(ctx context.Context, cfg *config.Config, w io.Writer) error {
	logger := log.GetLogger()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.WithError(err).Warn("metrics server shutdown failed")
			}
		}()
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}
	out, err := sink.NewFileSink(cfg.Output.Dir, cfg.Output.Extension)
	if err != nil {
		return err
	}
	rx := receiver.New(receiver.Config{
		BaseOffset: uint16(cfg.Receiver.BaseOffset),
		IDPrefix:   cfg.Receiver.IDPrefix,
	})

	p, err := pipeline.NewBuilder().
		WithSource(src).
		WithReceiver(rx).
		WithSink(out).
		WithAssembler(assembler.Config{
			MaxImageSize: cfg.Assembler.MaxImageSize,
			KeepPartial:  cfg.Assembler.KeepPartial,
			OnImage:      func(ev assembler.Event) { reportImage(w, out, ev) },
		}).
		WithBufferSize(cfg.Pipeline.BufferSize).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	runErr := p.Run(ctx)

	st := p.Stats()
	fmt.Fprintf(w, "frames: %d received, %d parsed, %d dropped, %d misses\n",
		st.Received, st.Parsed, st.Dropped, rx.MissCount())
	fmt.Fprintf(w, "images: %d completed, %d incomplete\n", st.Completed, st.Abandoned)
	return runErr
}

func reportImage(w io.Writer, out *sink.FileSink, ev assembler.Event) {
	switch {
	case ev.Err != nil:
		fmt.Fprintf(w, "FAILED   %s: %v\n", ev.FileID, ev.Err)
	case ev.Discarded:
		fmt.Fprintf(w, "DISCARD  %s (%d bytes, no end of image)\n", ev.FileID, ev.Size)
	case ev.Partial:
		fmt.Fprintf(w, "PARTIAL  %s (%d bytes)\n", out.Path(ev.FileID, true), ev.Size)
	default:
		fmt.Fprintf(w, "COMPLETE %s (%d bytes)\n", out.Path(ev.FileID, false), ev.Size)
	}
}
