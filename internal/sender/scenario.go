package sender

import (
	"fmt"
	"sort"
	"time"
)

// Step is one frame sent Copies times.
type Step struct {
	Stream   int
	Sequence uint16
	Tagged   bool

	// Zero values fall back to the sender configuration.
	VLAN        uint16
	Priority    *uint8
	PayloadSize int
	Copies      int

	// Text is the payload text. Empty means "R-TAG Test S{stream} Seq{seq} If{iface}".
	Text string
	// SrcPortOffset is added to the configured UDP source port.
	SrcPortOffset uint16
	// Pause follows the last copy.
	Pause time.Duration
}

// Lane is an ordered list of steps sent on one interface.
type Lane struct {
	// Port indexes the configured interfaces.
	Port  int
	Delay time.Duration
	Steps []Step
}

// Scenario is a named traffic pattern. Lanes run concurrently. A scenario
// with Parts runs them one after another instead.
type Scenario struct {
	Name        string
	Description string
	Lanes       []Lane
	Parts       []Scenario
}

// Frames returns the number of frames the scenario transmits with the given
// default copy count.
func (s Scenario) Frames(copies int) int {
	n := 0
	for _, p := range s.Parts {
		n += p.Frames(copies)
	}
	for _, l := range s.Lanes {
		for _, st := range l.Steps {
			if st.Copies > 0 {
				n += st.Copies
			} else {
				n += copies
			}
		}
	}
	return n
}

// ports returns the highest interface index the scenario uses.
func (s Scenario) ports() int {
	hi := 0
	for _, p := range s.Parts {
		if n := p.ports(); n > hi {
			hi = n
		}
	}
	for _, l := range s.Lanes {
		if l.Port > hi {
			hi = l.Port
		}
	}
	return hi
}

func prio(p uint8) *uint8 {
	return &p
}

func sequences(pause time.Duration, seqs ...uint16) []Step {
	steps := make([]Step, 0, len(seqs))
	for _, seq := range seqs {
		steps = append(steps, Step{Stream: 1, Sequence: seq, Tagged: true, Pause: pause})
	}
	return steps
}

func seqRange(from, to uint16) []uint16 {
	var out []uint16
	for seq := int(from); seq <= int(to); seq++ {
		out = append(out, uint16(seq))
	}
	return out
}

func referenceScenario() Scenario {
	var steps []Step
	for i := uint16(1); i <= 3; i++ {
		steps = append(steps, Step{
			Stream:   1,
			Sequence: i,
			Copies:   1,
			Text:     fmt.Sprintf("Reference VLAN #%d", i),
			Pause:    300 * time.Millisecond,
		})
	}
	return Scenario{
		Name:        "reference",
		Description: "3 VLAN frames without R-TAG",
		Lanes:       []Lane{{Steps: steps}},
	}
}

func officialScenario() Scenario {
	steps := sequences(500*time.Millisecond, seqRange(1, 5)...)
	for i := range steps {
		steps[i].Text = fmt.Sprintf("Official R-TAG Test #%d", steps[i].Sequence)
	}
	return Scenario{
		Name:        "official",
		Description: "sequences 1-5 with duplicates",
		Lanes:       []Lane{{Steps: steps}},
	}
}

func basicScenario() Scenario {
	return Scenario{
		Name:        "basic",
		Description: "sequences 1-10 with duplicates",
		Lanes:       []Lane{{Steps: sequences(200*time.Millisecond, seqRange(1, 10)...)}},
	}
}

func multiStreamScenario() Scenario {
	var steps []Step
	for stream := 1; stream <= 3; stream++ {
		for _, seq := range seqRange(1, 5) {
			steps = append(steps, Step{
				Stream:        stream,
				Sequence:      seq,
				Tagged:        true,
				SrcPortOffset: uint16(stream - 1),
				Pause:         100 * time.Millisecond,
			})
		}
	}
	return Scenario{
		Name:        "multi-stream",
		Description: "streams 1-3, sequences 1-5 each",
		Lanes:       []Lane{{Steps: steps}},
	}
}

func vlanPriorityScenario() Scenario {
	pairs := []struct {
		priority uint8
		vlan     uint16
	}{{0, 100}, {3, 200}, {6, 300}, {7, 400}}

	steps := make([]Step, 0, len(pairs))
	for i, p := range pairs {
		steps = append(steps, Step{
			Stream:   1,
			Sequence: uint16(i + 1),
			Tagged:   true,
			VLAN:     p.vlan,
			Priority: prio(p.priority),
			Pause:    300 * time.Millisecond,
		})
	}
	return Scenario{
		Name:        "vlan-priority",
		Description: "priorities 0/3/6/7 on VLANs 100-400",
		Lanes:       []Lane{{Steps: steps}},
	}
}

func payloadSizeScenario() Scenario {
	sizes := []int{64, 128, 256, 512, 1024, 1500}
	steps := make([]Step, 0, len(sizes))
	for i, size := range sizes {
		steps = append(steps, Step{
			Stream:      1,
			Sequence:    uint16(i + 1),
			Tagged:      true,
			PayloadSize: size,
			Pause:       200 * time.Millisecond,
		})
	}
	return Scenario{
		Name:        "payload-size",
		Description: "payloads of 64 to 1500 bytes",
		Lanes:       []Lane{{Steps: steps}},
	}
}

func wraparoundScenario() Scenario {
	return Scenario{
		Name:        "wraparound",
		Description: "sequences 65533 to 2 across the 16-bit boundary",
		Lanes:       []Lane{{Steps: sequences(200*time.Millisecond, 65533, 65534, 65535, 0, 1, 2)}},
	}
}

func bidirectionalScenario() Scenario {
	return Scenario{
		Name:        "bidirectional",
		Description: "sequences 100-102 and 200-202 on two interfaces at once",
		Lanes: []Lane{
			{Port: 0, Steps: sequences(300*time.Millisecond, seqRange(100, 102)...)},
			{Port: 1, Delay: 100 * time.Millisecond, Steps: sequences(300*time.Millisecond, seqRange(200, 202)...)},
		},
	}
}

var scenarios = func() map[string]Scenario {
	tagged := []Scenario{
		basicScenario(),
		multiStreamScenario(),
		vlanPriorityScenario(),
		payloadSizeScenario(),
		wraparoundScenario(),
		bidirectionalScenario(),
	}
	m := map[string]Scenario{
		"reference": referenceScenario(),
		"official":  officialScenario(),
		"all": {
			Name:        "all",
			Description: "every R-TAG scenario in turn",
			Parts:       tagged,
		},
	}
	for _, s := range tagged {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	return s, nil
}

// Scenarios lists the known scenarios by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
