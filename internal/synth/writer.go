package synth

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// WriteHex writes one hex-encoded frame per line.
func WriteHex(w io.Writer, frames [][]byte) error {
	bw := bufio.NewWriter(w)
	for _, f := range frames {
		if _, err := fmt.Fprintln(bw, hex.EncodeToString(f)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// PCAPOptions addresses the UDP datagrams written by WritePCAP.
type PCAPOptions struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Start   time.Time     // Timestamp of the first frame
	Gap     time.Duration // Spacing between frames
}

// WritePCAP writes every frame as the payload of an Ethernet/IPv4/UDP packet.
func WritePCAP(w io.Writer, frames [][]byte, opts PCAPOptions) error {
	if opts.SrcIP == nil {
		opts.SrcIP = net.IPv4(10, 0, 0, 1)
	}
	if opts.DstIP == nil {
		opts.DstIP = net.IPv4(10, 0, 0, 2)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	if opts.Gap == 0 {
		opts.Gap = 10 * time.Millisecond
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}

	for i, f := range frames {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    opts.SrcIP.To4(),
			DstIP:    opts.DstIP.To4(),
		}
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(opts.SrcPort),
			DstPort: layers.UDPPort(opts.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}

		buf := gopacket.NewSerializeBuffer()
		sopts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, sopts, eth, ip, udp, gopacket.Payload(f)); err != nil {
			return fmt.Errorf("serialize frame %d: %w", i, err)
		}

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     opts.Start.Add(time.Duration(i) * opts.Gap),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}
