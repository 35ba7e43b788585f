package sender

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/rtag"
)

type memTransmitter struct {
	mu     sync.Mutex
	frames [][]byte
	fail   error
}

func (m *memTransmitter) WritePacketData(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.frames = append(m.frames, append([]byte(nil), data...))
	return nil
}

func (m *memTransmitter) sequences(t *testing.T) []uint16 {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var seqs []uint16
	for _, f := range m.frames {
		h, err := rtag.Decode(f)
		require.NoError(t, err)
		seqs = append(seqs, h.Sequence)
	}
	return seqs
}

func testConfig(ifaces ...string) Config {
	return Config{
		Interfaces:   ifaces,
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		DstMAC:       net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		VLAN:         100,
		Priority:     3,
		NextProtocol: 0x0800,
		SrcIP:        netip.MustParseAddr("192.168.100.1"),
		DstIP:        netip.MustParseAddr("192.168.100.2"),
		SrcPort:      12345,
		DstPort:      54321,
		PayloadSize:  64,
		Copies:       2,
	}
}

func TestConfigFrom(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	sc, err := ConfigFrom(cfg.Sender)
	require.NoError(t, err)
	assert.Equal(t, []string{"enp2s0", "enp11s0"}, sc.Interfaces)
	assert.Equal(t, "02:00:00:00:00:01", sc.SrcMAC.String())
	assert.Equal(t, "ff:ff:ff:ff:ff:ff", sc.DstMAC.String())
	assert.Equal(t, uint16(100), sc.VLAN)
	assert.Equal(t, uint8(3), sc.Priority)
	assert.Equal(t, uint16(12345), sc.SrcPort)
	assert.Equal(t, 2, sc.Copies)
	assert.Equal(t, time.Millisecond, sc.DuplicateGap)
	assert.True(t, sc.DiscoverMAC)

	bad := cfg.Sender
	bad.SrcIP = "not-an-ip"
	_, err = ConfigFrom(bad)
	assert.Error(t, err)
}

func TestNew_RequiresTransmitters(t *testing.T) {
	_, err := New(testConfig(), nil)
	assert.Error(t, err)

	_, err = New(testConfig("eth0"), map[string]Transmitter{})
	assert.Error(t, err)

	cfg := testConfig("eth0")
	cfg.SrcMAC = nil
	_, err = New(cfg, map[string]Transmitter{"eth0": &memTransmitter{}})
	assert.Error(t, err)
}

func TestNew_DiscoversInterfaceMAC(t *testing.T) {
	orig := interfaceMAC
	defer func() { interfaceMAC = orig }()
	interfaceMAC = func(name string) (net.HardwareAddr, error) {
		if name == "eth0" {
			return net.HardwareAddr{0x68, 0x05, 0xca, 0xbd, 0x96, 0xe7}, nil
		}
		return nil, errors.New("no such interface")
	}

	cfg := testConfig("eth0", "eth1")
	cfg.DiscoverMAC = true
	s, err := New(cfg, map[string]Transmitter{"eth0": &memTransmitter{}, "eth1": &memTransmitter{}})
	require.NoError(t, err)

	assert.Equal(t, "68:05:ca:bd:96:e7", s.macs["eth0"].String())
	assert.Equal(t, cfg.SrcMAC, s.macs["eth1"], "falls back to the configured MAC")
}

func TestRun_SendsOriginalsAndDuplicates(t *testing.T) {
	tx := &memTransmitter{}
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": tx})
	require.NoError(t, err)

	sc := Scenario{Name: "t", Lanes: []Lane{{Steps: sequences(0, 1, 2, 3)}}}
	require.NoError(t, s.Run(context.Background(), sc))

	assert.Equal(t, []uint16{1, 1, 2, 2, 3, 3}, tx.sequences(t))
	assert.Equal(t, uint64(6), s.Sent())
	assert.Equal(t, tx.frames[0], tx.frames[1], "duplicates are byte-identical")

	// Default payload text carries stream, sequence and interface.
	assert.True(t, bytes.Contains(tx.frames[0], []byte("R-TAG Test S1 Seq1 Ifeth0")))
}

func TestRun_StepOverrides(t *testing.T) {
	tx := &memTransmitter{}
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": tx})
	require.NoError(t, err)

	sc := Scenario{Name: "t", Lanes: []Lane{{Steps: []Step{
		{Stream: 2, Sequence: 9, Tagged: true, VLAN: 300, Priority: prio(6), PayloadSize: 128, Copies: 3, SrcPortOffset: 1},
		{Stream: 1, Sequence: 1, Copies: 1, Text: "Reference VLAN #1"},
	}}}}
	require.NoError(t, s.Run(context.Background(), sc))
	require.Len(t, tx.frames, 4)

	f := tx.frames[0]
	// TCI: priority 6, VLAN 300.
	assert.Equal(t, []byte{0xC1, 0x2C}, f[14:16])
	h, err := rtag.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), h.Sequence)
	// Ethernet 14 + VLAN 4 + R-TAG 6 past its EtherType + IPv4 20 + UDP 8 + payload.
	// The R-TAG EtherType fills the VLAN tag's Type field.
	assert.Len(t, f, 14+4+6+20+8+128)
	// IPv4 total length: header, UDP and payload.
	assert.Equal(t, uint16(20+8+128), binary.BigEndian.Uint16(f[26:28]))
	// UDP source port 12346 right after the IPv4 header.
	assert.Equal(t, []byte{0x30, 0x3A}, f[44:46])

	ref := tx.frames[3]
	assert.Equal(t, []byte{0x08, 0x00}, ref[16:18], "no R-TAG after the VLAN tag")
	_, err = rtag.Decode(ref)
	assert.ErrorIs(t, err, rtag.ErrNotFound)
	assert.True(t, bytes.HasPrefix(ref[46:], []byte("Reference VLAN #1")))
}

func TestRun_LanesUseTheirInterfaces(t *testing.T) {
	a, b := &memTransmitter{}, &memTransmitter{}
	s, err := New(testConfig("eth0", "eth1"), map[string]Transmitter{"eth0": a, "eth1": b})
	require.NoError(t, err)

	sc := Scenario{Name: "t", Lanes: []Lane{
		{Port: 0, Steps: sequences(0, 100, 101, 102)},
		{Port: 1, Delay: time.Millisecond, Steps: sequences(0, 200, 201, 202)},
	}}
	require.NoError(t, s.Run(context.Background(), sc))

	assert.Equal(t, []uint16{100, 100, 101, 101, 102, 102}, a.sequences(t))
	assert.Equal(t, []uint16{200, 200, 201, 201, 202, 202}, b.sequences(t))
}

func TestRun_NeedsEnoughInterfaces(t *testing.T) {
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": &memTransmitter{}})
	require.NoError(t, err)

	sc, err := Lookup("bidirectional")
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background(), sc))
}

func TestRun_Parts(t *testing.T) {
	tx := &memTransmitter{}
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": tx})
	require.NoError(t, err)

	sc := Scenario{Name: "both", Parts: []Scenario{
		{Name: "one", Lanes: []Lane{{Steps: sequences(0, 1)}}},
		{Name: "two", Lanes: []Lane{{Steps: sequences(0, 2)}}},
	}}
	require.NoError(t, s.Run(context.Background(), sc))
	assert.Equal(t, []uint16{1, 1, 2, 2}, tx.sequences(t))
}

func TestRun_TransmitErrorStopsLane(t *testing.T) {
	boom := errors.New("link down")
	tx := &memTransmitter{fail: boom}
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": tx})
	require.NoError(t, err)

	err = s.Run(context.Background(), Scenario{Name: "t", Lanes: []Lane{{Steps: sequences(0, 1, 2)}}})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Sent())
}

func TestRun_Cancel(t *testing.T) {
	tx := &memTransmitter{}
	s, err := New(testConfig("eth0"), map[string]Transmitter{"eth0": tx})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.Run(ctx, Scenario{Name: "t", Lanes: []Lane{{Steps: sequences(time.Hour, 1, 2)}}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []uint16{1, 1}, tx.sequences(t))
}

func TestTee(t *testing.T) {
	a, b := &memTransmitter{}, &memTransmitter{fail: errors.New("full")}
	tee := Tee{a, b}

	err := tee.WritePacketData([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.Len(t, a.frames, 1, "one failing transmitter does not block the others")
}
