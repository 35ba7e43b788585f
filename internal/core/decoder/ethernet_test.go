package decoder

import (
	"testing"

	"firestige.xyz/frer/internal/rtag"
)

func TestDecodeEthernetBasic(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x00, // EtherType: IPv4
		0x45, 0x00, // Payload (start of IP header)
	}

	eth, payload, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}

	expectedDstMAC := [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	if eth.DstMAC != expectedDstMAC {
		t.Errorf("Expected DstMAC %v, got %v", expectedDstMAC, eth.DstMAC)
	}
	expectedSrcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if eth.SrcMAC != expectedSrcMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedSrcMAC, eth.SrcMAC)
	}
	if eth.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
	if eth.Priority != 0 || len(eth.VLANs) != 0 {
		t.Errorf("Expected untagged frame, got priority %d vlans %v", eth.Priority, eth.VLANs)
	}
	if len(payload) != 2 {
		t.Errorf("Expected payload length 2, got %d", len(payload))
	}
}

func TestDecodeEthernetRTagBehindVLAN(t *testing.T) {
	data := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x81, 0x00, // 802.1Q
		0x60, 0x64, // PCP 3, VLAN 100
	}
	data = append(data, rtag.Encode(7, 0x0800)...)

	eth, payload, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}
	if eth.EtherType != rtag.EtherType {
		t.Errorf("Expected EtherType 0xF1C1, got 0x%04x", eth.EtherType)
	}
	if vid, ok := eth.OuterVLAN(); !ok || vid != 100 {
		t.Errorf("Expected VLAN 100, got %d (%v)", vid, ok)
	}
	if eth.Priority != 3 {
		t.Errorf("Expected priority 3, got %d", eth.Priority)
	}
	if len(payload) != rtag.Len-2 {
		t.Errorf("Expected the tag body as payload, got %d bytes", len(payload))
	}
}

func TestDecodeEthernetWithQinQ(t *testing.T) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x88, 0xA8, // EtherType: QinQ (0x88A8)
		0xE0, 0x14, // Outer VLAN: PCP 7, ID 20
		0x81, 0x00, // EtherType: VLAN (0x8100)
		0x20, 0x0A, // Inner VLAN: PCP 1, ID 10
		0x08, 0x00, // Inner EtherType: IPv4
		0x45, 0x00, // Payload
	}

	eth, _, err := decodeEthernet(data)
	if err != nil {
		t.Fatalf("decodeEthernet failed: %v", err)
	}
	if eth.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
	if len(eth.VLANs) != 2 {
		t.Fatalf("Expected 2 VLAN tags, got %d", len(eth.VLANs))
	}
	if eth.VLANs[0] != 20 || eth.VLANs[1] != 10 {
		t.Errorf("Expected VLANs [20 10], got %v", eth.VLANs)
	}
	if eth.Priority != 7 {
		t.Errorf("Expected outer priority 7, got %d", eth.Priority)
	}
}

func TestDecodeEthernetTooShort(t *testing.T) {
	if _, _, err := decodeEthernet([]byte{0x00, 0x11, 0x22}); err == nil {
		t.Error("Expected error for too short packet, got nil")
	}

	truncatedVLAN := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x81, 0x00,
		0x00,
	}
	if _, _, err := decodeEthernet(truncatedVLAN); err == nil {
		t.Error("Expected error for truncated VLAN tag, got nil")
	}
}

func BenchmarkDecodeEthernet(b *testing.B) {
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
		0x81, 0x00, 0x60, 0x64,
	}
	data = append(data, rtag.Encode(1, 0x0800)...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := decodeEthernet(data); err != nil {
			b.Fatal(err)
		}
	}
}
