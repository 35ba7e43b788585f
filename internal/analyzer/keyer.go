package analyzer

import (
	"fmt"
	"net"
	"strconv"

	"firestige.xyz/frer/internal/core/decoder"
	"firestige.xyz/frer/internal/frer"
)

// Stream ids used when a frame lacks the field its keyer reads.
const (
	untaggedStream frer.StreamID = "untagged"
	unknownStream  frer.StreamID = "unknown"
)

// Keyer maps a decoded frame to the stream it belongs to.
type Keyer interface {
	Key(f *decoder.Frame) frer.StreamID
}

// KeyFunc adapts a function to Keyer.
type KeyFunc func(f *decoder.Frame) frer.StreamID

// Key calls fn(f).
func (fn KeyFunc) Key(f *decoder.Frame) frer.StreamID {
	return fn(f)
}

// NewKeyer returns the keyer for mode: single, vlan, src-mac or flow.
func NewKeyer(mode string) (Keyer, error) {
	switch mode {
	case "", "single":
		return KeyFunc(singleKey), nil
	case "vlan":
		return KeyFunc(vlanKey), nil
	case "src-mac":
		return KeyFunc(srcMACKey), nil
	case "flow":
		return KeyFunc(flowKey), nil
	default:
		return nil, fmt.Errorf("analyzer: unknown stream key %q", mode)
	}
}

func singleKey(*decoder.Frame) frer.StreamID {
	return frer.DefaultStream
}

func vlanKey(f *decoder.Frame) frer.StreamID {
	id, ok := f.Ethernet.OuterVLAN()
	if !ok {
		return untaggedStream
	}
	return frer.StreamID(strconv.Itoa(int(id)))
}

func srcMACKey(f *decoder.Frame) frer.StreamID {
	return frer.StreamID(net.HardwareAddr(f.Ethernet.SrcMAC[:]).String())
}

func flowKey(f *decoder.Frame) frer.StreamID {
	if !f.Flow.IsValid() {
		return unknownStream
	}
	return frer.StreamID(f.Flow.String())
}
