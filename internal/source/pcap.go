package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"golang.org/x/net/bpf"

	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/utils"
)

const TypePCAP = "pcap"

// pcapng section header block type, as it appears at the start of a file
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// PCAPOptions configures a pcap source.
type PCAPOptions struct {
	Path    string `mapstructure:"path"`
	UDPPort int    `mapstructure:"udp_port"` // 0 = any port
}

// PCAPSource replays UDP payloads from a pcap or pcapng capture.
type PCAPSource struct {
	opts   PCAPOptions
	filter *bpf.VM
	logger log.Logger
}

func (o *PCAPOptions) validate() error {
	if o.Path == "" {
		return fmt.Errorf("%w: pcap source requires path", core.ErrConfigInvalid)
	}
	if o.UDPPort < 0 || o.UDPPort > 0xFFFF {
		return fmt.Errorf("%w: udp_port %d out of range", core.ErrConfigInvalid, o.UDPPort)
	}
	return nil
}

// NewPCAP validates opts. The file is opened by Read.
func NewPCAP(opts PCAPOptions) (*PCAPSource, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &PCAPSource{
		opts:   opts,
		logger: log.GetLogger().WithFields(map[string]interface{}{"source": TypePCAP, "path": opts.Path}),
	}
	if opts.UDPPort != 0 {
		vm, err := utils.NewUDPPortVM(uint16(opts.UDPPort))
		if err != nil {
			return nil, err
		}
		s.filter = vm
	}
	return s, nil
}

func (s *PCAPSource) Name() string { return TypePCAP }

// packetReader is implemented by both pcapgo readers.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

func openCapture(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if string(magic) == string(ngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// Read implements Source.
func (s *PCAPSource) Read(ctx context.Context, out chan<- core.RawChunk) error {
	f, err := os.Open(s.opts.Path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", s.opts.Path, err)
	}
	defer f.Close()

	pr, err := openCapture(f)
	if err != nil {
		return fmt.Errorf("failed to read pcap file %s: %w", s.opts.Path, err)
	}
	linkType := pr.LinkType()

	var packets, skipped int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			s.logger.WithFields(map[string]interface{}{"packets": packets, "skipped": skipped}).Info("capture replayed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}
		packets++

		payload, ok := s.udpPayload(data, linkType)
		if !ok {
			skipped++
			continue
		}
		if err := emit(ctx, out, core.RawChunk{Data: payload, Timestamp: ci.Timestamp, Source: TypePCAP}); err != nil {
			return err
		}
	}
}

// udpPayload extracts the UDP payload of a captured packet, applying the
// port filter. The BPF program understands Ethernet framing only; other link
// types are matched on the decoded UDP header.
func (s *PCAPSource) udpPayload(data []byte, linkType layers.LinkType) ([]byte, bool) {
	if s.filter != nil && linkType == layers.LinkTypeEthernet {
		if n, err := s.filter.Run(data); err != nil || n == 0 {
			return nil, false
		}
	}

	pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return nil, false
	}
	if s.filter != nil && linkType != layers.LinkTypeEthernet && int(udp.DstPort) != s.opts.UDPPort {
		return nil, false
	}

	payload := make([]byte, len(udp.Payload))
	copy(payload, udp.Payload)
	return payload, true
}
