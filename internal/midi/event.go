// Package midi turns transport traffic into canonical events and routes them
// to the signal processor and the learn sampler.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind is the canonical event type.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
	ControlChange
	PitchBend
	Clock
	Start
	Stop
)

var kindNames = []string{"NoteOn", "NoteOff", "ControlChange", "PitchBend", "Clock", "Start", "Stop"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Event is a transport-independent MIDI message. Channel is 1-based; Data1
// is the note or controller number and Data2 the velocity or value.
type Event struct {
	Kind    Kind
	Channel uint8
	Data1   uint8
	Data2   uint8
	Bend    int16
}

func (e Event) String() string {
	switch e.Kind {
	case NoteOn, NoteOff:
		return fmt.Sprintf("%s ch%d %s vel:%d", e.Kind, e.Channel, NoteName(e.Data1), e.Data2)
	case ControlChange:
		return fmt.Sprintf("CC ch%d ctrl:%d val:%d", e.Channel, e.Data1, e.Data2)
	case PitchBend:
		return fmt.Sprintf("PitchBend ch%d %+d", e.Channel, e.Bend)
	}
	return e.Kind.String()
}

// Message converts the event back to MIDI 1.0 bytes.
func (e Event) Message() gomidi.Message {
	ch := e.Channel - 1
	switch e.Kind {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Data1, e.Data2)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Data1)
	case ControlChange:
		return gomidi.ControlChange(ch, e.Data1, e.Data2)
	case PitchBend:
		return gomidi.Pitchbend(ch, e.Bend)
	case Clock:
		return gomidi.TimingClock()
	case Start:
		return gomidi.Start()
	case Stop:
		return gomidi.Stop()
	}
	return nil
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a MIDI note number, e.g. 60 as C4.
func NoteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note/12)-1)
}
