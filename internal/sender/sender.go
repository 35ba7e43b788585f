// Package sender generates R-TAG traffic: every frame of a scenario is sent
// as an original followed by its duplicates, one lane per interface.
package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/frame"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/metrics"
)

// ErrUnknownScenario is returned by Lookup for an unknown name.
var ErrUnknownScenario = errors.New("sender: unknown scenario")

// Transmitter puts a complete frame on the wire unmodified.
type Transmitter interface {
	WritePacketData(data []byte) error
}

// Tee writes every frame to all its transmitters.
type Tee []Transmitter

// WritePacketData writes data to every transmitter and joins their errors.
func (t Tee) WritePacketData(data []byte) error {
	var errs []error
	for _, tx := range t {
		if err := tx.WritePacketData(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config contains sender configuration.
type Config struct {
	Interfaces   []string
	SrcMAC       net.HardwareAddr // used when an interface address is unknown
	DstMAC       net.HardwareAddr
	VLAN         uint16
	Priority     uint8
	NextProtocol uint16
	SrcIP        netip.Addr
	DstIP        netip.Addr
	SrcPort      uint16
	DstPort      uint16
	PayloadSize  int
	Copies       int
	DuplicateGap time.Duration
	// ScenarioPause separates the parts of a composite scenario.
	ScenarioPause time.Duration
	// DiscoverMAC uses each interface's hardware address as source MAC.
	DiscoverMAC bool
}

// ConfigFrom converts the validated sender section of the configuration.
func ConfigFrom(c config.SenderConfig) (Config, error) {
	var src net.HardwareAddr
	if c.SrcMAC != "" {
		mac, err := net.ParseMAC(c.SrcMAC)
		if err != nil {
			return Config{}, fmt.Errorf("sender: src_mac: %w", err)
		}
		src = mac
	}
	dst, err := net.ParseMAC(c.DstMAC)
	if err != nil {
		return Config{}, fmt.Errorf("sender: dst_mac: %w", err)
	}
	srcIP, err := netip.ParseAddr(c.SrcIP)
	if err != nil {
		return Config{}, fmt.Errorf("sender: src_ip: %w", err)
	}
	dstIP, err := netip.ParseAddr(c.DstIP)
	if err != nil {
		return Config{}, fmt.Errorf("sender: dst_ip: %w", err)
	}

	return Config{
		Interfaces:    c.Interfaces,
		SrcMAC:        src,
		DstMAC:        dst,
		VLAN:          uint16(c.VLANID),
		Priority:      uint8(c.Priority),
		NextProtocol:  uint16(c.NextProtocol),
		SrcIP:         srcIP,
		DstIP:         dstIP,
		SrcPort:       uint16(c.SrcPort),
		DstPort:       uint16(c.DstPort),
		PayloadSize:   c.PayloadSize,
		Copies:        c.Copies,
		DuplicateGap:  c.DuplicateGap,
		ScenarioPause: c.ScenarioPause,
		DiscoverMAC:   true,
	}, nil
}

// interfaceMAC is replaced in tests.
var interfaceMAC = func(name string) (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	if len(ifi.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %s has no Ethernet address", name)
	}
	return ifi.HardwareAddr, nil
}

// Sender transmits scenarios.
type Sender struct {
	cfg  Config
	tx   map[string]Transmitter
	macs map[string]net.HardwareAddr
	sent atomic.Uint64
}

// New creates a Sender. tx must hold a transmitter for every interface.
func New(cfg Config, tx map[string]Transmitter) (*Sender, error) {
	if len(cfg.Interfaces) == 0 {
		return nil, fmt.Errorf("sender: at least one interface is required")
	}
	if len(cfg.DstMAC) != 6 {
		return nil, fmt.Errorf("sender: destination MAC is required")
	}
	if cfg.Copies <= 0 {
		cfg.Copies = 2
	}

	s := &Sender{cfg: cfg, tx: tx, macs: make(map[string]net.HardwareAddr, len(cfg.Interfaces))}
	for _, name := range cfg.Interfaces {
		if tx[name] == nil {
			return nil, fmt.Errorf("sender: no transmitter for interface %s", name)
		}
		mac := cfg.SrcMAC
		if cfg.DiscoverMAC {
			if found, err := interfaceMAC(name); err == nil {
				mac = found
			} else {
				log.GetLogger().WithError(err).WithField("interface", name).
					Warnf("using configured source MAC %s", cfg.SrcMAC)
			}
		}
		if len(mac) != 6 {
			return nil, fmt.Errorf("sender: no source MAC for interface %s", name)
		}
		s.macs[name] = mac
	}
	return s, nil
}

// Sent returns the number of frames transmitted so far.
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}

// Run transmits sc and returns when every lane has finished or ctx is
// cancelled. Lane errors are joined.
func (s *Sender) Run(ctx context.Context, sc Scenario) error {
	if hi := sc.ports(); hi >= len(s.cfg.Interfaces) {
		return fmt.Errorf("sender: scenario %s needs %d interfaces, %d configured", sc.Name, hi+1, len(s.cfg.Interfaces))
	}

	for i, part := range sc.Parts {
		if i > 0 {
			if err := sleep(ctx, s.cfg.ScenarioPause); err != nil {
				return err
			}
		}
		if err := s.Run(ctx, part); err != nil {
			return err
		}
	}
	if len(sc.Lanes) == 0 {
		return nil
	}

	logger := log.GetLogger().WithField("scenario", sc.Name)
	logger.WithField("frames", sc.Frames(s.cfg.Copies)).Infof("scenario started: %s", sc.Description)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, lane := range sc.Lanes {
		wg.Add(1)
		go func(lane Lane) {
			defer wg.Done()
			if err := s.runLane(ctx, lane); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(lane)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("sender: scenario %s: %w", sc.Name, err)
	}
	logger.Info("scenario completed")
	return nil
}

func (s *Sender) runLane(ctx context.Context, lane Lane) error {
	iface := s.cfg.Interfaces[lane.Port]
	tx := s.tx[iface]
	logger := log.GetLogger().WithField("interface", iface)

	if err := sleep(ctx, lane.Delay); err != nil {
		return err
	}
	for _, st := range lane.Steps {
		data, err := s.build(iface, st)
		if err != nil {
			return err
		}

		copies := st.Copies
		if copies <= 0 {
			copies = s.cfg.Copies
		}
		logger.WithFields(map[string]interface{}{
			"stream": st.Stream,
			"seq":    st.Sequence,
			"tagged": st.Tagged,
			"bytes":  len(data),
		}).Info("sending frame")

		for c := 0; c < copies; c++ {
			if c > 0 {
				if err := sleep(ctx, s.cfg.DuplicateGap); err != nil {
					return err
				}
			}
			if err := tx.WritePacketData(data); err != nil {
				return fmt.Errorf("%s: seq %d copy %d: %w", iface, st.Sequence, c+1, err)
			}
			s.sent.Add(1)
			metrics.SentFramesTotal.WithLabelValues(iface, strconv.Itoa(c+1)).Inc()
		}

		if err := sleep(ctx, st.Pause); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) build(iface string, st Step) ([]byte, error) {
	spec := frame.Spec{
		SrcMAC:       s.macs[iface],
		DstMAC:       s.cfg.DstMAC,
		VLAN:         s.cfg.VLAN,
		Priority:     s.cfg.Priority,
		Tagged:       st.Tagged,
		Sequence:     st.Sequence,
		NextProtocol: s.cfg.NextProtocol,
		SrcIP:        s.cfg.SrcIP,
		DstIP:        s.cfg.DstIP,
		SrcPort:      s.cfg.SrcPort + st.SrcPortOffset,
		DstPort:      s.cfg.DstPort,
		IPID:         st.Sequence,
	}
	if st.VLAN != 0 {
		spec.VLAN = st.VLAN
	}
	if st.Priority != nil {
		spec.Priority = *st.Priority
	}

	size := s.cfg.PayloadSize
	if st.PayloadSize > 0 {
		size = st.PayloadSize
	}
	text := st.Text
	if text == "" {
		text = fmt.Sprintf("R-TAG Test S%d Seq%d If%s", st.Stream, st.Sequence, iface)
	}
	spec.Payload = frame.Payload(text, size)

	data, err := frame.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: seq %d: %w", iface, st.Sequence, err)
	}
	return data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
