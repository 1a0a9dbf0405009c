package midi

import (
	"sync/atomic"

	"github.com/icco/urack/internal/transport"
	"github.com/sirupsen/logrus"
)

// Processor consumes routed events.
type Processor interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note, velocity uint8)
	ControlChange(channel, controller, value uint8)
	PitchBend(channel uint8, value int16)
	Clock()
	Start()
	Stop()
}

// LearnSink receives every controller number and pitch-bend value, forwarded
// or not.
type LearnSink interface {
	RecordCC(channel, controller uint8)
	RecordPitchBend(channel uint8, value int16)
}

// Gate decides whether a transport's traffic is forwarded.
type Gate interface {
	IsEnabled(k transport.Kind) bool
}

// Stats counts router traffic for one transport.
type Stats struct {
	Routed  uint64
	Dropped uint64
	Invalid uint64
}

type counters struct {
	routed, dropped, invalid atomic.Uint64
}

// Router normalizes traffic from every transport into one event stream. It is
// called from transport callback goroutines and never blocks.
type Router struct {
	gate  Gate
	proc  Processor
	learn LearnSink
	log   logrus.FieldLogger
	stats [2]counters
}

// NewRouter wires a router to its collaborators.
func NewRouter(gate Gate, proc Processor, learn LearnSink, log logrus.FieldLogger) *Router {
	return &Router{gate: gate, proc: proc, learn: learn, log: log}
}

// Route decodes raw traffic from src: a MIDI 1.0 message for Bluetooth, a
// USB-MIDI event packet for USB.
func (r *Router) Route(src transport.Kind, raw []byte) {
	var (
		ev Event
		ok bool
	)
	switch src {
	case transport.BLE:
		ev, ok = DecodeMessage(raw)
	case transport.USB:
		ev, ok = DecodeUSBPacket(raw)
	default:
		return
	}
	c := &r.stats[src]
	if !ok {
		c.invalid.Add(1)
		return
	}
	r.Dispatch(src, ev)
}

// Dispatch routes an already decoded event.
func (r *Router) Dispatch(src transport.Kind, ev Event) {
	switch ev.Kind {
	case ControlChange:
		r.learn.RecordCC(ev.Channel, ev.Data1)
	case PitchBend:
		r.learn.RecordPitchBend(ev.Channel, ev.Bend)
	}

	var c *counters
	if src == transport.BLE || src == transport.USB {
		c = &r.stats[src]
	}
	if !r.gate.IsEnabled(src) {
		if c != nil {
			c.dropped.Add(1)
		}
		return
	}
	if c != nil {
		c.routed.Add(1)
	}

	r.log.WithField("transport", src).Debug(ev.String())

	switch ev.Kind {
	case NoteOn:
		r.proc.NoteOn(ev.Channel, ev.Data1, ev.Data2)
	case NoteOff:
		r.proc.NoteOff(ev.Channel, ev.Data1, ev.Data2)
	case ControlChange:
		r.proc.ControlChange(ev.Channel, ev.Data1, ev.Data2)
	case PitchBend:
		r.proc.PitchBend(ev.Channel, ev.Bend)
	case Clock:
		r.proc.Clock()
	case Start:
		r.proc.Start()
	case Stop:
		r.proc.Stop()
	}
}

// Stats returns the counters for src.
func (r *Router) Stats(src transport.Kind) Stats {
	if src != transport.BLE && src != transport.USB {
		return Stats{}
	}
	c := &r.stats[src]
	return Stats{
		Routed:  c.routed.Load(),
		Dropped: c.dropped.Load(),
		Invalid: c.invalid.Load(),
	}
}
