package utils

import (
	"fmt"

	"golang.org/x/net/bpf"
)

const (
	etherTypeIPv4 = 0x0800
	ipProtoUDP    = 17
	snapAll       = 0xFFFF
)

// UDPPortFilter assembles a classic BPF program that accepts Ethernet/IPv4/UDP
// frames addressed to port. Fragments past the first are rejected since they
// carry no UDP header.
func UDPPortFilter(port uint16) ([]bpf.RawInstruction, error) {
	instructions := []bpf.Instruction{
		// EtherType
		&bpf.LoadAbsolute{Off: 12, Size: 2},
		&bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 8},
		// IPv4 protocol
		&bpf.LoadAbsolute{Off: 23, Size: 1},
		&bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipProtoUDP, SkipFalse: 6},
		// fragment offset
		&bpf.LoadAbsolute{Off: 20, Size: 2},
		&bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1FFF, SkipTrue: 4},
		// X = IPv4 header length
		&bpf.LoadMemShift{Off: 14},
		// UDP destination port
		&bpf.LoadIndirect{Off: 16, Size: 2},
		&bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipFalse: 1},
		&bpf.RetConstant{Val: snapAll},
		&bpf.RetConstant{Val: 0},
	}
	raw, err := bpf.Assemble(instructions)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF filter: %w", err)
	}
	return raw, nil
}

// NewUDPPortVM returns a BPF VM running UDPPortFilter. A frame passes when
// Run returns a non-zero length.
func NewUDPPortVM(port uint16) (*bpf.VM, error) {
	raw, err := UDPPortFilter(port)
	if err != nil {
		return nil, err
	}
	instructions, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("failed to disassemble BPF filter")
	}
	return bpf.NewVM(instructions)
}
