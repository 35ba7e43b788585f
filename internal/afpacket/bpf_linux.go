//go:build linux

package afpacket

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/frer/internal/core"
)

// compileFilter compiles a tcpdump expression for Ethernet links and converts
// it to the instruction form TPacket.SetBPF accepts.
func compileFilter(expr string, snapLen int) ([]bpf.RawInstruction, error) {
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: BPF filter %q: %v", core.ErrConfigInvalid, expr, err)
	}
	raw := make([]bpf.RawInstruction, len(insns))
	for i, insn := range insns {
		raw[i] = bpf.RawInstruction{
			Op: insn.Code,
			Jt: insn.Jt,
			Jf: insn.Jf,
			K:  insn.K,
		}
	}
	return raw, nil
}
