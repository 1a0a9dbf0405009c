package config

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"
)

// NumChannels is the number of MIDI channels addressable on the wire.
const NumChannels = 16

// Clamp limits v to the closed range [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Channel is a 1-based MIDI channel.
type Channel int

const (
	MinChannel Channel = 1
	MaxChannel Channel = NumChannels
)

func (c Channel) String() string {
	return strconv.Itoa(int(c))
}

// OutChannel is the channel an output listens on. Besides the 16 concrete
// channels it can follow the base channel (Unchanged) or listen to all of them.
type OutChannel int

const (
	OutChannelUnchanged OutChannel = 0
	OutChannelAll       OutChannel = NumChannels + 1
)

// Concrete returns the 1-based channel if c names a single channel.
func (c OutChannel) Concrete() (Channel, bool) {
	if c >= 1 && c <= NumChannels {
		return Channel(c), true
	}
	return 0, false
}

func (c OutChannel) String() string {
	switch c {
	case OutChannelUnchanged:
		return "--"
	case OutChannelAll:
		return "All"
	default:
		return strconv.Itoa(int(c))
	}
}

func (c OutChannel) MarshalYAML() (interface{}, error) {
	switch c {
	case OutChannelUnchanged:
		return "unchanged", nil
	case OutChannelAll:
		return "all", nil
	}
	return int(c), nil
}

func (c *OutChannel) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "unchanged", "":
		*c = OutChannelUnchanged
		return nil
	case "all":
		*c = OutChannelAll
		return nil
	}
	n, err := strconv.Atoi(value.Value)
	if err != nil {
		return fmt.Errorf("invalid output channel %q: %w", value.Value, err)
	}
	*c = Clamp(OutChannel(n), OutChannelUnchanged, OutChannelAll)
	return nil
}

// OutType selects which part of the incoming MIDI stream drives an output.
// The CC range is contiguous so encoder arithmetic walks through every
// controller number in order.
type OutType int

const (
	OutNone OutType = iota
	OutGate
	OutPitch
	OutVelocity
	OutClock
	outCC0
	OutPitchBend = outCC0 + 128
)

// CC returns the output type that follows controller n.
func CC(n uint8) OutType {
	return outCC0 + OutType(n&0x7f)
}

// Controller reports the controller number for CC types.
func (t OutType) Controller() (uint8, bool) {
	if t >= outCC0 && t < OutPitchBend {
		return uint8(t - outCC0), true
	}
	return 0, false
}

func (t OutType) String() string {
	if n, ok := t.Controller(); ok {
		return "CC" + strconv.Itoa(int(n))
	}
	switch t {
	case OutNone:
		return "Off"
	case OutGate:
		return "Gate"
	case OutPitch:
		return "Pitch"
	case OutVelocity:
		return "Vel"
	case OutClock:
		return "Clk"
	case OutPitchBend:
		return "Bend"
	}
	return "?"
}

var outTypeNames = map[string]OutType{
	"off":       OutNone,
	"gate":      OutGate,
	"pitch":     OutPitch,
	"velocity":  OutVelocity,
	"clock":     OutClock,
	"pitchbend": OutPitchBend,
}

// ParseOutType parses the file form of an output type ("gate", "cc74", ...).
func ParseOutType(s string) (OutType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := outTypeNames[s]; ok {
		return t, nil
	}
	if rest, ok := strings.CutPrefix(s, "cc"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n > 127 {
			return OutNone, fmt.Errorf("invalid controller in %q", s)
		}
		return CC(uint8(n)), nil
	}
	return OutNone, fmt.Errorf("unknown output type %q", s)
}

func (t OutType) MarshalYAML() (interface{}, error) {
	if n, ok := t.Controller(); ok {
		return "cc" + strconv.Itoa(int(n)), nil
	}
	for name, v := range outTypeNames {
		if v == t {
			return name, nil
		}
	}
	return nil, fmt.Errorf("unknown output type %d", int(t))
}

func (t *OutType) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseOutType(value.Value)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ClockMode selects where the clock comes from and how far external MIDI
// clock is divided down.
type ClockMode int

const (
	ClockInternal ClockMode = iota
	ClockMIDI
	ClockMIDIHalf
	ClockMIDIQuarter
)

var clockModeNames = []string{"INT", "MIDI", "MIDI/2", "MIDI/4"}

func (m ClockMode) String() string {
	if m < 0 || int(m) >= len(clockModeNames) {
		return "?"
	}
	return clockModeNames[m]
}

// Divisor is the number of quarter notes per output pulse, zero for the
// internal clock.
func (m ClockMode) Divisor() int {
	switch m {
	case ClockMIDI:
		return 1
	case ClockMIDIHalf:
		return 2
	case ClockMIDIQuarter:
		return 4
	}
	return 0
}

func (m ClockMode) MarshalYAML() (interface{}, error) {
	return strings.ToLower(m.String()), nil
}

func (m *ClockMode) UnmarshalYAML(value *yaml.Node) error {
	for i, name := range clockModeNames {
		if strings.EqualFold(name, value.Value) {
			*m = ClockMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown clock mode %q", value.Value)
}

// OnOff renders an enable flag the way the device screen does.
func OnOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
