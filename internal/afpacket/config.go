package afpacket

const (
	defaultSnapLen      = 65535
	defaultBufferSizeMB = 8
)

// Config describes a live capture.
type Config struct {
	Interface    string
	BPFFilter    string
	SnapLen      int
	BufferSizeMB int
}

func (c Config) withDefaults() Config {
	if c.SnapLen <= 0 {
		c.SnapLen = defaultSnapLen
	}
	if c.BufferSizeMB <= 0 {
		c.BufferSizeMB = defaultBufferSizeMB
	}
	return c
}

// CaptureStats holds capture counters.
type CaptureStats struct {
	Received uint64
	Dropped  uint64
}
