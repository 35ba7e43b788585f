package analyzer

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/frer/internal/core"
	"firestige.xyz/frer/internal/frame"
	"firestige.xyz/frer/internal/frer"
	"firestige.xyz/frer/internal/report"
)

// sliceCapturer replays frames in order, then returns err.
type sliceCapturer struct {
	name   string
	frames [][]byte
	err    error
}

func (c *sliceCapturer) Name() string { return c.name }

func (c *sliceCapturer) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	for _, data := range c.frames {
		select {
		case out <- core.RawPacket{Data: data, Timestamp: time.Now(), Interface: c.name}:
		case <-ctx.Done():
			return nil
		}
	}
	return c.err
}

// idleCapturer produces nothing until ctx is cancelled.
type idleCapturer struct{}

func (idleCapturer) Name() string { return "idle" }

func (idleCapturer) Capture(ctx context.Context, out chan<- core.RawPacket) error {
	<-ctx.Done()
	return nil
}

// recorder keeps every event it receives.
type recorder struct {
	mu      sync.Mutex
	events  []report.Event
	flushes int
	fail    error
}

func (r *recorder) Name() string                    { return "recorder" }
func (r *recorder) Init(map[string]any) error       { return nil }
func (r *recorder) Start(ctx context.Context) error { return nil }
func (r *recorder) Stop(ctx context.Context) error  { return nil }

func (r *recorder) Flush(ctx context.Context) error {
	r.flushes++
	return nil
}

func (r *recorder) Report(ctx context.Context, ev *report.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return r.fail
}

func (r *recorder) kinds() map[report.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := make(map[report.Kind]int)
	for _, ev := range r.events {
		n[ev.Kind]++
	}
	return n
}

func (r *recorder) last() report.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type frameOpts struct {
	vlan     uint16
	reserved uint16
	srcPort  uint16
}

func tagged(t *testing.T, seq uint16, o frameOpts) []byte {
	t.Helper()
	if o.vlan == 0 {
		o.vlan = 100
	}
	if o.srcPort == 0 {
		o.srcPort = 12345
	}
	data, err := frame.Build(frame.Spec{
		SrcMAC:   net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		DstMAC:   net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		VLAN:     o.vlan,
		Priority: 3,
		Tagged:   true,
		Sequence: seq,
		Reserved: o.reserved,
		SrcIP:    netip.MustParseAddr("192.168.100.1"),
		DstIP:    netip.MustParseAddr("192.168.100.2"),
		SrcPort:  o.srcPort,
		DstPort:  54321,
		IPID:     seq,
		Payload:  frame.Payload("R-TAG Test", 64),
	})
	require.NoError(t, err)
	return data
}

// untagged is an Ethernet frame with an empty IPv4 body.
func untagged() []byte {
	data := make([]byte, 60)
	data[12], data[13] = 0x08, 0x00
	return data
}

func newAnalyzer(t *testing.T, engine *frer.Engine, keyer string, rec report.Reporter, capturers ...Capturer) *Analyzer {
	t.Helper()
	k, err := NewKeyer(keyer)
	require.NoError(t, err)
	a, err := New(Config{
		Engine:      engine,
		Capturers:   capturers,
		Keyer:       k,
		Reporters:   []report.Reporter{rec},
		ReportEvery: 10,
		Expected:    2,
		BufferSize:  4,
	})
	require.NoError(t, err)
	return a
}

func TestNew_Validation(t *testing.T) {
	k, _ := NewKeyer("single")
	c := &sliceCapturer{name: "a"}

	_, err := New(Config{Capturers: []Capturer{c}, Keyer: k})
	assert.Error(t, err)
	_, err = New(Config{Engine: frer.New(frer.Config{}), Keyer: k})
	assert.Error(t, err)
	_, err = New(Config{Engine: frer.New(frer.Config{}), Capturers: []Capturer{c}})
	assert.Error(t, err)

	a, err := New(Config{Engine: frer.New(frer.Config{}), Capturers: []Capturer{c}, Keyer: k})
	require.NoError(t, err)
	assert.Equal(t, uint64(defaultReportEvery), a.reportEvery)
	assert.Equal(t, uint64(defaultExpected), a.expected)
	assert.Equal(t, defaultBufferSize, a.bufferSize)
}

func TestRun_PerfectSession(t *testing.T) {
	var frames [][]byte
	for seq := uint16(1); seq <= 10; seq++ {
		frames = append(frames, tagged(t, seq, frameOpts{}), tagged(t, seq, frameOpts{}))
	}
	frames = append(frames, untagged())

	engine := frer.New(frer.Config{})
	rec := &recorder{}
	a := newAnalyzer(t, engine, "single", rec, &sliceCapturer{name: "enp2s0", frames: frames})

	require.NoError(t, a.Run(context.Background()))

	kinds := rec.kinds()
	assert.Equal(t, 20, kinds[report.KindFrame])
	assert.Equal(t, 2, kinds[report.KindSnapshot])
	assert.Equal(t, 1, kinds[report.KindFinal])
	assert.Equal(t, 1, rec.flushes)

	final := rec.last()
	require.Equal(t, report.KindFinal, final.Kind)
	require.NotNil(t, final.Stats)
	assert.Equal(t, uint64(21), final.Stats.TotalFrames)
	assert.Equal(t, uint64(20), final.Stats.RTagFrames)
	assert.Equal(t, uint64(10), final.Stats.Unique)
	assert.Equal(t, uint64(10), final.Stats.Duplicate)
	assert.InDelta(t, 50.0, final.Stats.EliminationRate(), 1e-9)
	assert.True(t, final.Stats.Perfect(final.Expected))

	first := rec.events[0]
	require.Equal(t, report.KindFrame, first.Kind)
	assert.Equal(t, uint64(1), first.Frame.Index)
	assert.Equal(t, frer.Original, first.Frame.Classification)
	assert.Equal(t, "ACCEPTED", first.Frame.Action)
	assert.Equal(t, uint16(100), first.Frame.VLAN)
	assert.Equal(t, uint8(3), first.Frame.Priority)
	assert.Equal(t, "enp2s0", first.Frame.Interface)
	assert.Equal(t, "17/192.168.100.1:12345>192.168.100.2:54321", first.Frame.Flow)
	assert.Equal(t, frer.Duplicate, rec.events[1].Frame.Classification)

	st := a.Stats()
	assert.Equal(t, uint64(21), st.Received)
	assert.Equal(t, uint64(21), st.Decoded)
	assert.Equal(t, uint64(1), st.NotTagged)
	assert.Equal(t, uint64(20), st.Classified)
	assert.Zero(t, st.ReportErrors)
}

func TestRun_MergesCapturersPerVLAN(t *testing.T) {
	var a100, a200 [][]byte
	for seq := uint16(1); seq <= 3; seq++ {
		a100 = append(a100, tagged(t, seq, frameOpts{vlan: 100}))
		a200 = append(a200, tagged(t, seq, frameOpts{vlan: 200}))
	}

	rec := &recorder{}
	a := newAnalyzer(t, frer.New(frer.Config{}), "vlan", rec,
		&sliceCapturer{name: "enp2s0", frames: a100},
		&sliceCapturer{name: "enp11s0", frames: a200},
	)
	require.NoError(t, a.Run(context.Background()))

	final := rec.last()
	assert.Equal(t, uint64(6), final.Stats.Unique)
	assert.Zero(t, final.Stats.Duplicate)
	assert.Len(t, final.Stats.Streams, 2)
	assert.Equal(t, uint64(3), final.Stats.Streams["100"].Unique)
	assert.Equal(t, uint64(3), final.Stats.Streams["200"].Unique)
}

func TestRun_FlowKeyingSeparatesStreams(t *testing.T) {
	frames := [][]byte{
		tagged(t, 1, frameOpts{srcPort: 12345}),
		tagged(t, 1, frameOpts{srcPort: 12346}),
		tagged(t, 1, frameOpts{srcPort: 12345}),
	}
	rec := &recorder{}
	a := newAnalyzer(t, frer.New(frer.Config{}), "flow", rec, &sliceCapturer{name: "a", frames: frames})
	require.NoError(t, a.Run(context.Background()))

	final := rec.last()
	assert.Equal(t, uint64(2), final.Stats.Unique)
	assert.Equal(t, uint64(1), final.Stats.Duplicate)
}

func TestRun_MalformedReserved(t *testing.T) {
	frames := [][]byte{
		tagged(t, 1, frameOpts{reserved: 0xABCD}),
		tagged(t, 1, frameOpts{}),
	}

	t.Run("flagged", func(t *testing.T) {
		rec := &recorder{}
		a := newAnalyzer(t, frer.New(frer.Config{}), "single", rec, &sliceCapturer{name: "a", frames: frames})
		require.NoError(t, a.Run(context.Background()))

		first := rec.events[0].Frame
		assert.False(t, first.Rejected)
		assert.NotEmpty(t, first.Anomaly)
		assert.Equal(t, frer.Original, first.Classification)
		assert.Equal(t, frer.Duplicate, rec.events[1].Frame.Classification)
		assert.Equal(t, uint64(1), rec.last().Stats.MalformedReserved)
	})

	t.Run("rejected", func(t *testing.T) {
		rec := &recorder{}
		engine := frer.New(frer.Config{RejectMalformedReserved: true})
		a := newAnalyzer(t, engine, "single", rec, &sliceCapturer{name: "a", frames: frames})
		require.NoError(t, a.Run(context.Background()))

		first := rec.events[0].Frame
		assert.True(t, first.Rejected)
		assert.Equal(t, "NONE", first.Action)
		assert.Equal(t, frer.Original, rec.events[1].Frame.Classification)

		final := rec.last().Stats
		assert.Equal(t, uint64(1), final.Rejected)
		assert.Equal(t, uint64(1), final.Unique)
		assert.Equal(t, uint64(1), a.Stats().Rejected)
		assert.Equal(t, uint64(1), a.Stats().Classified)
	})
}

func TestRun_DecodeErrorsAreCounted(t *testing.T) {
	rec := &recorder{}
	a := newAnalyzer(t, frer.New(frer.Config{}), "single", rec,
		&sliceCapturer{name: "a", frames: [][]byte{{0x01, 0x02}, tagged(t, 9, frameOpts{})}})
	require.NoError(t, a.Run(context.Background()))

	st := a.Stats()
	assert.Equal(t, uint64(2), st.Received)
	assert.Equal(t, uint64(1), st.DecodeErrors)
	assert.Equal(t, uint64(1), st.Classified)
	assert.Equal(t, uint64(2), rec.last().Stats.TotalFrames)
}

func TestRun_CaptureErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{}
	a := newAnalyzer(t, frer.New(frer.Config{}), "single", rec,
		&sliceCapturer{name: "bad", frames: [][]byte{tagged(t, 1, frameOpts{})}, err: boom},
		&sliceCapturer{name: "good", frames: [][]byte{tagged(t, 1, frameOpts{})}},
	)

	err := a.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")

	final := rec.last()
	assert.Equal(t, report.KindFinal, final.Kind)
	assert.Equal(t, uint64(2), final.Stats.RTagFrames)
}

func TestRun_CancelReportsFinal(t *testing.T) {
	rec := &recorder{}
	a := newAnalyzer(t, frer.New(frer.Config{}), "single", rec, idleCapturer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, report.KindFinal, rec.last().Kind)
	assert.Equal(t, 1, rec.flushes)
}

func TestRun_ReporterErrorsDoNotStopAnalysis(t *testing.T) {
	rec := &recorder{fail: errors.New("unavailable")}
	a := newAnalyzer(t, frer.New(frer.Config{}), "single", rec,
		&sliceCapturer{name: "a", frames: [][]byte{tagged(t, 1, frameOpts{}), tagged(t, 1, frameOpts{})}})
	require.NoError(t, a.Run(context.Background()))

	st := a.Stats()
	assert.Equal(t, uint64(2), st.Classified)
	assert.Equal(t, uint64(3), st.ReportErrors)
	assert.Zero(t, st.Reported)
}
